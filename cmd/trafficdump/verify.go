package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/trafficdump/pkg/capture/redact"
	"mercator-hq/trafficdump/pkg/cli"
	"mercator-hq/trafficdump/pkg/replay"
)

var verifyFlags struct {
	sensitiveFields   string
	clientHTTPVersion string
	clientProtocols   string
}

var verifyCmd = &cobra.Command{
	Use:   "verify <file|dir>...",
	Short: "Check replay files written by the proxy",
	Long: `Check that replay files are valid replay documents, that sensitive
headers only carry the redaction placeholder and, optionally, that the
client protocol stack matches what is expected.

Directories are walked recursively; every regular file is checked.

Examples:
  # Check one file
  trafficdump verify /tmp/dump/127/0000000000000000 --sensitive-fields cookie,set-cookie

  # Check a whole log directory of HTTP/2 captures
  trafficdump verify /tmp/dump --client-http-version 2 --client-protocols tcp,ip`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyFlags.sensitiveFields, "sensitive-fields", "", "comma-separated header names that must be redacted")
	verifyCmd.Flags().StringVar(&verifyFlags.clientHTTPVersion, "client-http-version", "", "expected client HTTP version (1.1, 2, 3)")
	verifyCmd.Flags().StringVar(&verifyFlags.clientProtocols, "client-protocols", "", "comma-separated protocols expected in the client stack (e.g. tcp,ip,tls)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return cli.NewCommandError("verify", err)
	}
	if len(files) == 0 {
		return cli.NewCommandError("verify", fmt.Errorf("no replay files under %s", strings.Join(args, ", ")))
	}

	opts := replay.VerifyOptions{
		SensitiveFields:   redact.ParseFields(verifyFlags.sensitiveFields),
		ClientHTTPVersion: verifyFlags.clientHTTPVersion,
	}
	if verifyFlags.clientProtocols != "" {
		for _, p := range strings.Split(verifyFlags.clientProtocols, ",") {
			if p = strings.TrimSpace(p); p != "" {
				opts.ClientProtocols = append(opts.ClientProtocols, p)
			}
		}
	}

	var progress *cli.Progress
	if len(files) > 1 && !verbose {
		progress = cli.NewProgress(cmd.ErrOrStderr())
		progress.Start(int64(len(files)))
	}

	var failures []string
	for _, path := range files {
		err := verifyFile(path, opts)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", path, err))
		}
		if progress != nil {
			progress.Advance(err != nil)
		} else if verbose || len(files) == 1 {
			printVerifyResult(cmd, path, err)
		}
	}
	if progress != nil {
		progress.Finish()
	}

	for _, f := range failures {
		fmt.Fprintln(cmd.ErrOrStderr(), "✗", f)
	}
	if len(failures) > 0 {
		return &cli.VerificationError{Failed: len(failures), Total: len(files)}
	}
	if len(files) > 1 {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %d replay files verified\n", len(files))
	}
	return nil
}

func verifyFile(path string, opts replay.VerifyOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return replay.Verify(data, opts)
}

func printVerifyResult(cmd *cobra.Command, path string, err error) {
	if err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", path)
	}
}

// collectFiles expands directories into the regular files below them,
// skipping dot files such as health probes.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() && !strings.HasPrefix(d.Name(), ".") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}
