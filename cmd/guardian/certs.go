package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"candela-hq/guardian/pkg/cli"
)

var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "Create and inspect TLS certificates for the HTTP server",
}

var certsGenerateFlags struct {
	hosts    string
	org      string
	validity int
	keySize  int
	output   string
}

var certsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a self-signed certificate",
	Long: `Generate a self-signed certificate and RSA key for local TLS testing.
The key is written with mode 0600. Use a certificate from a real CA in
production.

Examples:
  guardian certs generate --host localhost,127.0.0.1
  guardian certs generate --validity 30 --output /etc/guardian/tls`,
	Args: cobra.NoArgs,
	RunE: runCertsGenerate,
}

var certsInfoFlags struct {
	format string
}

var certsInfoCmd = &cobra.Command{
	Use:   "info <cert-file>",
	Short: "Show certificate details",
	Long: `Show the subject, issuer, validity and names of a PEM certificate.
Exits with code 3 when the certificate has expired.`,
	Args: cobra.ExactArgs(1),
	RunE: runCertsInfo,
}

func init() {
	rootCmd.AddCommand(certsCmd)
	certsCmd.AddCommand(certsGenerateCmd, certsInfoCmd)

	certsGenerateCmd.Flags().StringVar(&certsGenerateFlags.hosts, "host", "localhost,127.0.0.1", "comma-separated hostnames and IPs")
	certsGenerateCmd.Flags().StringVar(&certsGenerateFlags.org, "org", "Guardian", "organization name")
	certsGenerateCmd.Flags().IntVar(&certsGenerateFlags.validity, "validity", 365, "validity in days")
	certsGenerateCmd.Flags().IntVar(&certsGenerateFlags.keySize, "key-size", 2048, "RSA key size: 2048, 3072, 4096")
	certsGenerateCmd.Flags().StringVarP(&certsGenerateFlags.output, "output", "o", "certs", "output directory")

	certsInfoCmd.Flags().StringVarP(&certsInfoFlags.format, "format", "f", "text", "output format: text, json")
}

type certView struct {
	CertFile     string    `json:"cert_file,omitempty"`
	KeyFile      string    `json:"key_file,omitempty"`
	Subject      string    `json:"subject"`
	Issuer       string    `json:"issuer"`
	Serial       string    `json:"serial"`
	NotBefore    time.Time `json:"not_before"`
	NotAfter     time.Time `json:"not_after"`
	DNSNames     []string  `json:"dns_names,omitempty"`
	IPAddresses  []string  `json:"ip_addresses,omitempty"`
	SelfSigned   bool      `json:"self_signed"`
	Expired      bool      `json:"expired"`
	DaysToExpiry int       `json:"days_to_expiry"`
}

func newCertView(cert *x509.Certificate, now time.Time) certView {
	v := certView{
		Subject:      cert.Subject.String(),
		Issuer:       cert.Issuer.String(),
		Serial:       cert.SerialNumber.Text(16),
		NotBefore:    cert.NotBefore.UTC(),
		NotAfter:     cert.NotAfter.UTC(),
		DNSNames:     cert.DNSNames,
		SelfSigned:   cert.CheckSignatureFrom(cert) == nil,
		Expired:      now.After(cert.NotAfter),
		DaysToExpiry: int(cert.NotAfter.Sub(now).Hours() / 24),
	}
	for _, ip := range cert.IPAddresses {
		v.IPAddresses = append(v.IPAddresses, ip.String())
	}
	return v
}

func (v certView) WriteText(w io.Writer, p *cli.Palette) error {
	if v.CertFile != "" {
		fmt.Fprintf(w, "%s certificate: %s\n", p.Pass("✓"), v.CertFile)
		fmt.Fprintf(w, "%s private key: %s\n", p.Pass("✓"), v.KeyFile)
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Subject:     %s\n", v.Subject)
	fmt.Fprintf(w, "Issuer:      %s\n", v.Issuer)
	fmt.Fprintf(w, "Serial:      %s\n", v.Serial)
	fmt.Fprintf(w, "Not before:  %s\n", v.NotBefore.Format(time.RFC3339))
	fmt.Fprintf(w, "Not after:   %s\n", v.NotAfter.Format(time.RFC3339))
	if len(v.DNSNames) > 0 {
		fmt.Fprintf(w, "DNS names:   %s\n", strings.Join(v.DNSNames, ", "))
	}
	if len(v.IPAddresses) > 0 {
		fmt.Fprintf(w, "IPs:         %s\n", strings.Join(v.IPAddresses, ", "))
	}
	switch {
	case v.Expired:
		fmt.Fprintf(w, "Status:      %s\n", p.Fail("EXPIRED"))
	case v.DaysToExpiry < 30:
		fmt.Fprintf(w, "Status:      %s\n", p.Warn(fmt.Sprintf("expires in %d days", v.DaysToExpiry)))
	default:
		fmt.Fprintf(w, "Status:      %s\n", p.Pass(fmt.Sprintf("valid for %d days", v.DaysToExpiry)))
	}
	if v.SelfSigned {
		fmt.Fprintln(w, p.Dim("Self-signed: for testing only"))
	}

	if v.CertFile != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "server:")
		fmt.Fprintln(w, "  tls:")
		fmt.Fprintln(w, "    enabled: true")
		fmt.Fprintf(w, "    cert_file: %q\n", v.CertFile)
		fmt.Fprintf(w, "    key_file: %q\n", v.KeyFile)
	}
	return nil
}

func runCertsGenerate(cmd *cobra.Command, args []string) error {
	f := certsGenerateFlags
	switch f.keySize {
	case 2048, 3072, 4096:
	default:
		return cli.NewConfigError("key-size", fmt.Sprintf("invalid key size %d (must be 2048, 3072 or 4096)", f.keySize))
	}
	if f.validity < 1 {
		return cli.NewConfigError("validity", "validity must be at least one day")
	}

	var hosts, dnsNames []string
	var ips []net.IP
	for _, h := range strings.Split(f.hosts, ",") {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		hosts = append(hosts, h)
		if ip := net.ParseIP(h); ip != nil {
			ips = append(ips, ip)
		} else {
			dnsNames = append(dnsNames, h)
		}
	}
	if len(hosts) == 0 {
		return cli.NewConfigError("host", "at least one host is required")
	}

	key, err := rsa.GenerateKey(rand.Reader, f.keySize)
	if err != nil {
		return cli.NewCommandError("certs generate", fmt.Errorf("generate key: %w", err))
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return cli.NewCommandError("certs generate", fmt.Errorf("generate serial: %w", err))
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{f.org},
			CommonName:   hosts[0],
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.AddDate(0, 0, f.validity),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		DNSNames:              dnsNames,
		IPAddresses:           ips,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return cli.NewCommandError("certs generate", fmt.Errorf("create certificate: %w", err))
	}

	if err := os.MkdirAll(f.output, 0o750); err != nil {
		return cli.NewCommandError("certs generate", err)
	}
	certPath := filepath.Join(f.output, "cert.pem")
	keyPath := filepath.Join(f.output, "key.pem")
	if err := writePEM(certPath, "CERTIFICATE", der, 0o644); err != nil {
		return cli.NewCommandError("certs generate", err)
	}
	if err := writePEM(keyPath, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key), 0o600); err != nil {
		return cli.NewCommandError("certs generate", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return cli.NewCommandError("certs generate", err)
	}
	view := newCertView(cert, now)
	view.CertFile = certPath
	view.KeyFile = keyPath
	return cli.NewFormatter(cli.FormatText, cli.NewPalette(!noColor)).FormatTo(cmd.OutOrStdout(), view)
}

func runCertsInfo(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(certsInfoFlags.format)
	if err != nil {
		return err
	}
	if format == cli.FormatCSV {
		return cli.NewConfigError("format", "certs info supports text and json")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return cli.NewCommandError("certs info", err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return cli.NewCommandError("certs info", fmt.Errorf("%s: no PEM certificate found", args[0]))
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return cli.NewCommandError("certs info", err)
	}

	view := newCertView(cert, time.Now())
	if err := cli.NewFormatter(format, cli.NewPalette(!noColor)).FormatTo(cmd.OutOrStdout(), view); err != nil {
		return err
	}
	if view.Expired {
		return &cli.ExitError{Code: cli.ExitRejected, Reason: "certificate expired"}
	}
	return nil
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
