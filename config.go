package art

import (
	"io"
	"os"

	asm "github.com/riscv-android-src/platform-art/internal/asm/riscv64"
	"github.com/riscv-android-src/platform-art/internal/codecache"
	"github.com/riscv-android-src/platform-art/internal/features"
)

// forcedLongBranchDistance promotes every branch that does not target its own
// instruction when the longbranches feature flag is set.
const forcedLongBranchDistance = 4

// AssemblerConfig controls how routines are assembled, with the default
// implementation as NewAssemblerConfig.
//
// Note: AssemblerConfig is immutable. Each WithXXX function returns a new
// instance including the corresponding change.
type AssemblerConfig struct {
	isa                    features.ISAFeatures
	xthead                 bool
	heapPoisoning          bool
	maxShortBranchDistance uint32
	cfi                    bool
	thread                 asm.ThreadOffsets
	listing                io.Writer
	cache                  *codecache.Store
}

// NewAssemblerConfig returns a config for a plain RV64GC target. Heap
// poisoning, forced long branches and listings default from the RVASMFEATURES
// environment variable.
func NewAssemblerConfig() *AssemblerConfig {
	ret := &AssemblerConfig{
		isa:           features.DefaultISAFeatures,
		heapPoisoning: features.Have(features.HeapPoisoning),
		thread:        asm.DefaultThreadOffsets,
	}
	if features.Have(features.LongBranches) {
		ret.maxShortBranchDistance = forcedLongBranchDistance
	}
	if features.Have(features.Listing) {
		ret.listing = os.Stderr
	}
	return ret
}

// clone ensures all fields are copied even if nil.
func (c *AssemblerConfig) clone() *AssemblerConfig {
	ret := *c
	return &ret
}

// WithISAFeatures sets the extensions generated code may use.
func (c *AssemblerConfig) WithISAFeatures(isa features.ISAFeatures) *AssemblerConfig {
	ret := c.clone()
	ret.isa = isa
	return ret
}

// WithXThead enables the XThead vendor extensions.
func (c *AssemblerConfig) WithXThead(enabled bool) *AssemblerConfig {
	ret := c.clone()
	ret.xthead = enabled
	return ret
}

// WithHeapPoisoning toggles poisoning of heap references.
func (c *AssemblerConfig) WithHeapPoisoning(enabled bool) *AssemblerConfig {
	ret := c.clone()
	ret.heapPoisoning = enabled
	return ret
}

// WithMaxShortBranchDistance promotes every branch whose distance in bytes is
// at least distance. Zero keeps the natural ranges of the instructions.
func (c *AssemblerConfig) WithMaxShortBranchDistance(distance uint32) *AssemblerConfig {
	ret := c.clone()
	ret.maxShortBranchDistance = distance
	return ret
}

// WithCFI toggles recording of call frame information.
func (c *AssemblerConfig) WithCFI(enabled bool) *AssemblerConfig {
	ret := c.clone()
	ret.cfi = enabled
	return ret
}

// WithThreadOffsets sets the thread layout used by frame helpers.
func (c *AssemblerConfig) WithThreadOffsets(thread asm.ThreadOffsets) *AssemblerConfig {
	ret := c.clone()
	ret.thread = thread
	return ret
}

// WithListing writes a Go assembler listing of every assembled routine to w.
// A nil w disables listings.
func (c *AssemblerConfig) WithListing(w io.Writer) *AssemblerConfig {
	ret := c.clone()
	ret.listing = w
	return ret
}

// WithCodeCache deduplicates assembled routines in store, which may be shared
// between configs used concurrently.
func (c *AssemblerConfig) WithCodeCache(store *codecache.Store) *AssemblerConfig {
	ret := c.clone()
	ret.cache = store
	return ret
}

// Options resolves the config into assembler options.
func (c *AssemblerConfig) Options() asm.Options {
	return asm.Options{
		ISA:                    c.isa,
		XThead:                 c.xthead,
		HeapPoisoning:          c.heapPoisoning,
		MaxShortBranchDistance: c.maxShortBranchDistance,
		CFI:                    c.cfi,
		Thread:                 c.thread,
	}
}

// NewAssembler returns an assembler using the resolved options.
func (c *AssemblerConfig) NewAssembler() *asm.Assembler {
	return asm.NewAssembler(c.Options())
}
