package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/cobra"

	"candela-hq/guardian/pkg/cli"
)

// apiKeyPrefix marks generated keys so they are recognizable in configs
// and secret scanners.
const apiKeyPrefix = "gdn_"

var keyNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

var keysFlags struct {
	name       string
	bytes      int
	secretsDir string
	format     string
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys for the HTTP server",
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a random API key",
	Long: `Generate a random API key for server.auth.

With --secrets-dir the key is written to <dir>/<name> with mode 0600 and
only the ${secret:<name>} reference is printed, so the key never appears
in the terminal or in the config file.

Examples:
  guardian keys generate --name ci
  guardian keys generate --name ci --secrets-dir /run/secrets/guardian`,
	Args: cobra.NoArgs,
	RunE: runKeysGenerate,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysGenerateCmd)

	keysGenerateCmd.Flags().StringVarP(&keysFlags.name, "name", "n", "default", "key name (lowercase letters, digits and hyphens)")
	keysGenerateCmd.Flags().IntVar(&keysFlags.bytes, "bytes", 32, "random bytes in the key (at least 16)")
	keysGenerateCmd.Flags().StringVar(&keysFlags.secretsDir, "secrets-dir", "", "write the key to this secrets directory")
	keysGenerateCmd.Flags().StringVarP(&keysFlags.format, "format", "f", "text", "output format: text, json")
}

type keyView struct {
	Name       string `json:"name"`
	Key        string `json:"key,omitempty"`
	SecretFile string `json:"secret_file,omitempty"`
	Reference  string `json:"reference,omitempty"`
}

func (v keyView) WriteText(w io.Writer, p *cli.Palette) error {
	value := v.Key
	if v.SecretFile != "" {
		fmt.Fprintf(w, "%s key %q written to %s\n", p.Pass("✓"), v.Name, v.SecretFile)
		value = v.Reference
	} else {
		fmt.Fprintf(w, "API key %q: %s\n", v.Name, v.Key)
		fmt.Fprintln(w, p.Warn("Store it now, it is not saved anywhere."))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "server:")
	fmt.Fprintln(w, "  auth:")
	fmt.Fprintln(w, "    enabled: true")
	fmt.Fprintln(w, "    keys:")
	fmt.Fprintf(w, "      - name: %s\n", v.Name)
	fmt.Fprintf(w, "        key: %q\n", value)
	return nil
}

func runKeysGenerate(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(keysFlags.format)
	if err != nil {
		return err
	}
	if format == cli.FormatCSV {
		return cli.NewConfigError("format", "keys generate supports text and json")
	}
	if !keyNamePattern.MatchString(keysFlags.name) {
		return cli.NewConfigError("name", fmt.Sprintf("invalid key name %q", keysFlags.name))
	}
	if keysFlags.bytes < 16 {
		return cli.NewConfigError("bytes", "at least 16 random bytes are required")
	}

	key, err := newAPIKey(keysFlags.bytes)
	if err != nil {
		return cli.NewCommandError("keys generate", err)
	}
	view := keyView{Name: keysFlags.name, Key: key}

	if keysFlags.secretsDir != "" {
		path, err := writeSecret(keysFlags.secretsDir, keysFlags.name, key)
		if err != nil {
			return cli.NewCommandError("keys generate", err)
		}
		view.Key = ""
		view.SecretFile = path
		view.Reference = "${secret:" + keysFlags.name + "}"
	}
	return cli.NewFormatter(format, cli.NewPalette(!noColor)).FormatTo(cmd.OutOrStdout(), view)
}

func newAPIKey(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return apiKeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// writeSecret creates dir/name with mode 0600. An existing secret is not
// overwritten.
func writeSecret(dir, name, value string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create secrets dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("write secret: %w", err)
	}
	if _, err := f.WriteString(value + "\n"); err != nil {
		f.Close()
		return "", fmt.Errorf("write secret: %w", err)
	}
	return path, f.Close()
}
