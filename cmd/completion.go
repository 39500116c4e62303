package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_modshield() {
    local cur prev words cword
    _init_completion || return

    local commands="obfuscate build key verify builds version help completion"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    local cmd="${words[1]}"
    case "$cmd" in
        obfuscate|build|verify)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "-e -o -b -v --expiration --output --bundler --verbose" -- "$cur"))
            else
                _filedir -d
            fi
            ;;
        key)
            COMPREPLY=($(compgen -W "init show rotate export import" -- "$cur"))
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

complete -F _modshield modshield
`

const zshCompletion = `#compdef modshield

_modshield() {
    local -a commands
    commands=(
        'obfuscate:Encrypt a module tree and build the gatekeeper'
        'build:Obfuscate and package a standalone executable'
        'key:Manage installation key material'
        'verify:Compare built payloads against current sources'
        'builds:List recorded builds'
        'version:Show the tool version'
        'completion:Generate shell completions'
        'help:Show help for a command'
    )

    if (( CURRENT == 2 )); then
        _describe 'command' commands
        return
    fi

    case "$words[2]" in
        obfuscate|build|verify)
            _files -/
            ;;
        key)
            _values 'subcommand' init show rotate export import
            ;;
        completion)
            _values 'shell' bash zsh fish
            ;;
        help)
            _describe 'command' commands
            ;;
    esac
}

_modshield
`

const fishCompletion = `complete -c modshield -f
complete -c modshield -n __fish_use_subcommand -a obfuscate -d 'Encrypt a module tree and build the gatekeeper'
complete -c modshield -n __fish_use_subcommand -a build -d 'Obfuscate and package a standalone executable'
complete -c modshield -n __fish_use_subcommand -a key -d 'Manage installation key material'
complete -c modshield -n __fish_use_subcommand -a verify -d 'Compare built payloads against current sources'
complete -c modshield -n __fish_use_subcommand -a builds -d 'List recorded builds'
complete -c modshield -n __fish_use_subcommand -a version -d 'Show the tool version'
complete -c modshield -n __fish_use_subcommand -a completion -d 'Generate shell completions'
complete -c modshield -n '__fish_seen_subcommand_from key' -a 'init show rotate export import'
complete -c modshield -n '__fish_seen_subcommand_from completion' -a 'bash zsh fish'
`
