package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"xdao.co/vcb/compliance"
	"xdao.co/vcb/keys"
	"xdao.co/vcb/proof"
	"xdao.co/vcb/storage"
	"xdao.co/vcb/trust"
	"xdao.co/vcb/trust/grpctrust"
	"xdao.co/vcb/trustlist"
)

// app is the state shared by every subcommand: output streams, the loaded
// config and the logger built from it.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	logLevel   string
	jsonOut    bool

	cfg    *Config
	logger *slog.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "vcb",
		Short: "Issue and verify verifiable credential barcodes",
		Long: "vcb signs claims into compact payloads that fit a 2D barcode, verifies them " +
			"against a trust list and published status lists, and manages the keys and " +
			"status lists behind them.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return &exitError{code: 2}
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &exitError{code: 2, err: err}
	})

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default $"+configEnv+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override log.level")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "Output as JSON")

	root.AddCommand(
		a.keyCmd(),
		a.encodeCmd(),
		a.verifyCmd(),
		a.statusCmd(),
		a.qrCmd(),
		a.trustCmd(),
		a.bundleCmd(),
	)
	return root
}

func (a *app) load() error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return usageErrorf("invalid --log-level: %v", err)
		}
	}
	a.cfg = cfg
	a.logger = cfg.Logger(a.errOut)
	return nil
}

func (a *app) keyStore() (*keys.KeyStore, error) {
	return keys.CreateKeyStore(a.cfg.Keys.Dir)
}

func (a *app) store() (storage.Store, error) {
	return a.cfg.Storage.Open("")
}

func (a *app) complianceMode(flag string) (compliance.ComplianceMode, error) {
	if flag == "" {
		flag = a.cfg.Verify.Compliance
	}
	return compliance.ParseMode(flag)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readTrustList loads and parses a trust list file under mode.
func readTrustList(path string, mode compliance.ComplianceMode) (*trustlist.List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	l, err := trustlist.ParseWithCompliance(data, mode)
	if err != nil {
		return nil, fmt.Errorf("trust list %s: %w", path, err)
	}
	return l, nil
}

// resolver builds the trust.Resolver a verification uses. A configured
// trustd address wins; otherwise keys come from the trust list and status
// lists from local storage. Either way lookups are cached, and remote
// lookups are retried.
func (a *app) resolver(trustList string, mode compliance.ComplianceMode) (trust.Resolver, func() error, error) {
	vc := a.cfg.Verify
	cache := trust.CacheConfig{Size: vc.CacheSize, ListTTL: vc.CacheTTL}

	if vc.Trustd != "" {
		client, err := grpctrust.Dial(vc.Trustd, grpctrust.DialOptions{Timeout: vc.Timeout})
		if err != nil {
			return nil, nil, fmt.Errorf("dial trustd %s: %w", vc.Trustd, err)
		}
		retrying := trust.NewRetrying(client, trust.RetryConfig{MaxRetries: vc.Retries, Logger: a.logger})
		return trust.NewCaching(retrying, cache), client.Close, nil
	}

	if trustList == "" {
		trustList = vc.TrustList
	}
	keySource := trust.NewStatic()
	if trustList != "" {
		l, err := readTrustList(trustList, mode)
		if err != nil {
			return nil, nil, err
		}
		n := l.Load(keySource)
		a.logger.Debug("loaded trust list", "path", trustList, "keys", n)
	}
	s, err := a.store()
	if err != nil {
		return nil, nil, err
	}
	r := &trust.CASResolver{Keys: keySource, Store: s}
	return trust.NewCaching(r, cache), func() error { return nil }, nil
}

// signerFlags selects a signing key the same way for every command that
// signs: a key file, a raw Ed25519 seed, or a key store entry.
type signerFlags struct {
	keyFile string
	seedHex string
	keyID   string
	name    string
	role    string
}

func (f *signerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.keyFile, "key-file", "", "Key record file")
	cmd.Flags().StringVar(&f.seedHex, "seed-hex", "", "Ed25519 seed as 64 hex chars (requires --key-id)")
	cmd.Flags().StringVar(&f.keyID, "key-id", "", "Key id to sign as when using --seed-hex")
	cmd.Flags().StringVar(&f.name, "signer", "", "Key store identifier")
	cmd.Flags().StringVar(&f.role, "signer-role", "", "Role key under --signer")
}

func (f *signerFlags) load(a *app) (*proof.PrivateKey, error) {
	if f.seedHex != "" && f.keyID == "" {
		return nil, usageErrorf("--seed-hex requires --key-id")
	}
	ks, err := a.keyStore()
	if err != nil {
		return nil, fmt.Errorf("keys: %w", err)
	}
	k, err := ks.LoadSigner(f.keyFile, f.seedHex, f.keyID, f.name, f.role)
	if errors.Is(err, keys.ErrNoSigner) {
		return nil, usageErrorf("one of --key-file, --seed-hex or --signer is required")
	}
	if err != nil {
		return nil, fmt.Errorf("load signer: %w", err)
	}
	return k, nil
}
