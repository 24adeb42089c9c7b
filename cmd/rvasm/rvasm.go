package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	art "github.com/riscv-android-src/platform-art"
	asm "github.com/riscv-android-src/platform-art/internal/asm/riscv64"
	"github.com/riscv-android-src/platform-art/internal/callconv"
	"github.com/riscv-android-src/platform-art/internal/codecache"
	"github.com/riscv-android-src/platform-art/internal/features"
)

func main() {
	features.EnableFromEnvironment()
	doMain(os.Stdout, os.Stderr, os.Exit)
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdOut, stdErr io.Writer, exit func(code int)) {
	flag.CommandLine.SetOutput(stdErr)

	var help bool
	flag.BoolVar(&help, "h", false, "print usage")

	flag.Parse()

	if help || flag.NArg() == 0 {
		printUsage(stdErr)
		exit(0)
	}

	subCmd := flag.Arg(0)
	switch subCmd {
	case "trampoline":
		doTrampoline(flag.Args()[1:], stdOut, stdErr, exit)
	case "classify":
		doClassify(flag.Args()[1:], stdOut, stdErr, exit)
	case "decode":
		doDecode(flag.Args()[1:], stdOut, stdErr, exit)
	default:
		fmt.Fprintln(stdErr, "invalid command")
		printUsage(stdErr)
		exit(1)
	}
}

func doTrampoline(args []string, stdOut, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("trampoline", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	isa := flags.String("isa", features.DefaultISAFeatures.String(), "ISA string of the target, e.g. rv64gcv")
	entry := flags.Int("entry", 0, "offset of the native entrypoint in the method")
	withCFI := flags.Bool("cfi", false, "print the call frame information program")
	cacheDir := cacheDirFlag(flags)

	_ = flags.Parse(args)

	if help {
		printTrampolineUsage(stdErr, flags)
		exit(0)
	}

	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing shorty")
		printTrampolineUsage(stdErr, flags)
		exit(1)
	}
	shorty := flags.Arg(0)

	isaFeatures, err := features.FromISAString(*isa)
	if err != nil {
		fmt.Fprintf(stdErr, "invalid isa: %v\n", err)
		exit(1)
	}

	cfg := art.NewAssemblerConfig().
		WithISAFeatures(isaFeatures).
		WithCFI(*withCFI).
		WithListing(stdOut)
	if store := maybeUseCacheDir(cacheDir, stdErr, exit); store != nil {
		cfg = cfg.WithCodeCache(store)
	}

	r, err := art.CriticalNativeTrampoline(cfg, shorty, int32(*entry))
	if err != nil {
		fmt.Fprintf(stdErr, "error assembling trampoline: %v\n", err)
		exit(1)
	}
	if *withCFI {
		fmt.Fprintf(stdOut, "// cfi: %s\n", hex.EncodeToString(r.CFI))
	}
	fmt.Fprintf(stdOut, "// key: %s\n", r.Key)
	exit(0)
}

func doClassify(args []string, stdOut, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("classify", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	native := flags.Bool("native", false, "use the native calling convention")
	critical := flags.Bool("critical", false, "the method is @CriticalNative, implies -native and -static")
	static := flags.Bool("static", false, "the method is static")

	_ = flags.Parse(args)

	if help {
		printClassifyUsage(stdErr, flags)
		exit(0)
	}

	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing shorty")
		printClassifyUsage(stdErr, flags)
		exit(1)
	}
	shorty := flags.Arg(0)
	if err := callconv.ValidateShorty(shorty); err != nil {
		fmt.Fprintf(stdErr, "invalid shorty: %v\n", err)
		exit(1)
	}

	if !*native && !*critical {
		printLocations(stdOut, callconv.NewManagedRuntimeCallingConvention(shorty, *static, false).Locations())
		exit(0)
	}
	c := callconv.NewJNICallingConvention(shorty, *static || *critical, false, *critical)
	printLocations(stdOut, c.Locations())
	fmt.Fprintf(stdOut, "frame size: %d\nout frame size: %d\n", c.FrameSize(), c.OutFrameSize())
	exit(0)
}

func printLocations(w io.Writer, locs []callconv.ArgLocation) {
	for i, l := range locs {
		fmt.Fprintf(w, "%d: %s\n", i, l)
	}
}

func doDecode(args []string, stdOut, stdErr io.Writer, exit func(code int)) {
	if len(args) == 0 {
		fmt.Fprintln(stdErr, "missing instruction words")
		exit(1)
	}
	for _, arg := range args {
		w, err := strconv.ParseUint(strings.TrimPrefix(arg, "0x"), 16, 32)
		if err != nil {
			fmt.Fprintf(stdErr, "invalid word %q: %v\n", arg, err)
			exit(1)
		}
		in, err := asm.Decode(uint32(w))
		if err != nil {
			fmt.Fprintf(stdOut, "%08x: %v\n", w, err)
			continue
		}
		fmt.Fprintf(stdOut, "%08x: %s\n", w, in)
	}
	exit(0)
}

func cacheDirFlag(flags *flag.FlagSet) *string {
	return flags.String("cachedir", "", "Writeable directory for assembled routines. "+
		"Identical routines are stored once.")
}

func maybeUseCacheDir(cacheDir *string, stdErr io.Writer, exit func(code int)) *codecache.Store {
	if dir := *cacheDir; dir != "" {
		fc, err := codecache.NewFileCache(dir)
		if err != nil {
			fmt.Fprintf(stdErr, "invalid cachedir: %v\n", err)
			exit(1)
		}
		return codecache.NewStore(fc)
	}
	return nil
}

func printUsage(stdErr io.Writer) {
	fmt.Fprintln(stdErr, "rvasm CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  rvasm <command>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Commands:")
	fmt.Fprintln(stdErr, "  trampoline\tAssembles a @CriticalNative trampoline")
	fmt.Fprintln(stdErr, "  classify\tPrints argument locations of a shorty")
	fmt.Fprintln(stdErr, "  decode\tDisassembles hexadecimal instruction words")
}

func printTrampolineUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "rvasm CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  rvasm trampoline <options> <shorty>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}

func printClassifyUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "rvasm CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  rvasm classify <options> <shorty>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}
