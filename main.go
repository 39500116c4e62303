package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modshield/modshield/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "obfuscate":
		runObfuscate(ctx, os.Args[2:])
	case "build":
		runBuild(ctx, os.Args[2:])
	case "key":
		runKey(ctx, os.Args[2:])
	case "verify":
		runVerify(ctx, os.Args[2:])
	case "builds":
		runBuilds(ctx, os.Args[2:])
	case "version":
		cmd.Version()
	case "completion":
		runCompletion(ctx, os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runObfuscate(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("obfuscate", flag.ExitOnError)
	expiration := fs.String("e", "", "Expiration instant (RFC 3339 or YYYY-MM-DD)")
	expirationLong := fs.String("expiration", "", "Expiration instant (RFC 3339 or YYYY-MM-DD)")
	output := fs.String("o", "", "Output directory")
	outputLong := fs.String("output", "", "Output directory")
	backend := fs.String("b", "", "Bundler backend (uv, poetry, standard)")
	backendLong := fs.String("bundler", "", "Bundler backend (uv, poetry, standard)")
	verbose := fs.Bool("v", false, "Show per-file progress")
	merge := fs.Bool("merge", false, "Nest the gatekeeper inside the application package")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: modshield obfuscate [flags] <module-dir>")
		os.Exit(1)
	}

	cmd.Obfuscate(ctx, cmd.ObfuscateOptions{
		ModulePath:   fs.Arg(0),
		Expiration:   pick(*expiration, *expirationLong),
		OutputDir:    pick(*output, *outputLong),
		Bundler:      pick(*backend, *backendLong),
		MergeRuntime: *merge,
		Verbose:      *verbose,
	})
}

func runBuild(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	exeName := fs.String("exe", "MyApp", "Name of the output executable")
	expiration := fs.String("e", "", "Expiration instant (RFC 3339 or YYYY-MM-DD)")
	expirationLong := fs.String("expiration", "", "Expiration instant (RFC 3339 or YYYY-MM-DD)")
	output := fs.String("o", "", "Output directory")
	outputLong := fs.String("output", "", "Output directory")
	backend := fs.String("b", "", "Bundler backend (uv, poetry, standard)")
	backendLong := fs.String("bundler", "", "Bundler backend (uv, poetry, standard)")
	verbose := fs.Bool("v", false, "Show per-file progress")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: modshield build [flags] <module-dir>")
		os.Exit(1)
	}

	cmd.BuildExe(ctx, cmd.BuildOptions{
		ObfuscateOptions: cmd.ObfuscateOptions{
			ModulePath: fs.Arg(0),
			Expiration: pick(*expiration, *expirationLong),
			OutputDir:  pick(*output, *outputLong),
			Bundler:    pick(*backend, *backendLong),
			Verbose:    *verbose,
		},
		ExeName: *exeName,
	})
}

func runKey(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: modshield key <init|show|rotate|export|import> [args]")
		os.Exit(1)
	}

	switch args[0] {
	case "init":
		cmd.KeyInit()
	case "show":
		cmd.KeyShow()
	case "rotate":
		fs := flag.NewFlagSet("key rotate", flag.ExitOnError)
		force := fs.Bool("force", false, "Rotate without confirmation")
		if err := fs.Parse(args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
		cmd.KeyRotate(*force)
	case "export":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "Usage: modshield key export <file>")
			os.Exit(1)
		}
		cmd.KeyExport(args[1])
	case "import":
		fs := flag.NewFlagSet("key import", flag.ExitOnError)
		force := fs.Bool("force", false, "Import without confirmation")
		if err := fs.Parse(args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "Usage: modshield key import [--force] <file>")
			os.Exit(1)
		}
		cmd.KeyImport(fs.Arg(0), *force)
	default:
		fmt.Fprintf(os.Stderr, "Unknown key subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func runVerify(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	showDiff := fs.Bool("diff", false, "Show diffs for drifted modules")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "Usage: modshield verify [--diff] <dist-dir> <module-dir>")
		os.Exit(1)
	}

	cmd.Verify(ctx, fs.Arg(0), fs.Arg(1), *showDiff)
}

func runBuilds(_ context.Context, args []string) {
	fs := flag.NewFlagSet("builds", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Builds()
}

func runCompletion(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: modshield completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func pick(short, long string) string {
	if long != "" {
		return long
	}
	return short
}

func printUsage() {
	fmt.Println("modshield - Protect distributed Python source with compiled gatekeepers")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  modshield <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  obfuscate   Encrypt a module tree and build the gatekeeper package")
	fmt.Println("  build       Obfuscate and package a standalone executable")
	fmt.Println("  key         Manage installation key material")
	fmt.Println("  verify      Compare built payloads against current sources")
	fmt.Println("  builds      List recorded builds")
	fmt.Println("  version     Show the tool version")
	fmt.Println("  completion  Generate shell completions")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  modshield obfuscate ./myapp                 # Protect myapp into ./msdist")
	fmt.Println("  modshield obfuscate ./myapp -e 2027-01-01   # Protect with an expiry guard")
	fmt.Println("  modshield build ./myapp -exe MyApp          # Single-file executable")
	fmt.Println("  modshield verify msdist ./myapp             # Detect drift since the build")
	fmt.Println()
	fmt.Println("Use 'modshield help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "obfuscate":
		fmt.Println("modshield obfuscate [-e instant] [-o dir] [-b backend] [-v] [--merge] <module-dir>")
		fmt.Println()
		fmt.Println("Encrypts every .py file under the module directory, replaces each")
		fmt.Println("with a loader stub, copies other resources verbatim, and builds the")
		fmt.Println("gatekeeper package that decrypts payloads at application startup.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  -e, --expiration  Reject execution at/after this instant")
		fmt.Println("  -o, --output      Output directory (default msdist)")
		fmt.Println("  -b, --bundler     Compile/package backend: uv, poetry, standard")
		fmt.Println("  --merge           Nest the gatekeeper inside the application package")
		fmt.Println("  -v                Show per-file progress")
		fmt.Println()
		fmt.Println("Settings may also come from .modshield.yaml; flags win.")
	case "build":
		fmt.Println("modshield build [-exe name] [-e instant] [-o dir] [-b backend] <module-dir>")
		fmt.Println()
		fmt.Println("Runs obfuscate with merged packaging, then assembles a standalone")
		fmt.Println("executable with PyInstaller. The module must provide __main__.py.")
	case "key":
		fmt.Println("modshield key <init|show|rotate|export|import>")
		fmt.Println()
		fmt.Println("Manages the per-installation key/nonce pair. The pair is created on")
		fmt.Println("first use and stored in the OS keyring, with a 0600 file fallback.")
		fmt.Println("Rotating or importing invalidates all previously built artifacts.")
		fmt.Println()
		fmt.Println("  export <file>   Write a passphrase-protected copy (for CI runners)")
		fmt.Println("  import <file>   Install key material from an export file")
	case "verify":
		fmt.Println("modshield verify [--diff] <dist-dir> <module-dir>")
		fmt.Println()
		fmt.Println("Decrypts the payloads of a built output tree with the local key and")
		fmt.Println("compares them with the current sources. Exits non-zero when any")
		fmt.Println("module drifted or cannot be decrypted.")
	case "builds":
		fmt.Println("modshield builds")
		fmt.Println()
		fmt.Println("Lists builds recorded in the project manifest (.modshield.db).")
	case "completion":
		fmt.Println("modshield completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Outputs a shell completion script for the specified shell.")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
