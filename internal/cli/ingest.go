package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/ingest/internal/config"
	"github.com/JonMunkholm/ingest/internal/core"
	"github.com/JonMunkholm/ingest/internal/ingest"
	"github.com/spf13/cobra"
)

// ErrRefused is returned after printing a result whose outcome is Error.
var ErrRefused = errors.New("ingest refused")

type ingestOptions struct {
	root *rootOptions

	contentType  string
	checksum     string
	checksumType string
	maxSize      config.ByteSize
	quota        config.ByteSize
	maxEntries   int
	fixity       string
	tempDir      string
	storageDir   string
	charset      string
	noBagIt      bool
	dryRun       bool
}

func newIngestCmd(root *rootOptions) *cobra.Command {
	o := &ingestOptions{root: root}

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Run a local file through the ingestion pipeline",
		Long: `Run a local file through the ingestion pipeline and print the result as JSON.

Archives are unpacked the way the server would unpack an upload. Produced
files are written to the storage directory unless --dry-run is given.
Limits default to the service configuration (environment and CONFIG_FILE).`,
		Example: `  ingestctl ingest survey.zip
  ingestctl ingest data.csv.gz --max-size 50MiB --fixity SHA-256
  ingestctl ingest bag.zip --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.contentType, "type", "t", "", "Content type supplied with the file")
	f.StringVar(&o.checksum, "checksum", "", "Expected checksum of the file")
	f.StringVar(&o.checksumType, "checksum-type", "", "Algorithm of --checksum (default: MD5)")
	f.Var(&o.maxSize, "max-size", "Per-file size limit, 0 for unlimited")
	f.Var(&o.quota, "quota", "Aggregate size limit of produced files, 0 for unlimited")
	f.IntVar(&o.maxEntries, "max-entries", 0, "Maximum files taken from one zip, 0 for unlimited")
	f.StringVar(&o.fixity, "fixity", "", "Fixity algorithm: MD5, SHA-1, SHA-256, SHA-512")
	f.StringVar(&o.tempDir, "temp-dir", "", "Scratch directory for staging")
	f.StringVar(&o.storageDir, "storage-dir", "", "Directory receiving produced files")
	f.StringVar(&o.charset, "zip-charset", "", "Charset of non-UTF-8 zip entry names")
	f.BoolVar(&o.noBagIt, "no-bagit", false, "Treat BagIt bags as plain zips")
	f.BoolVar(&o.dryRun, "dry-run", false, "Delete produced files after printing the result")

	return cmd
}

// apply overlays the flags the user set onto the configured ingest settings.
func (o *ingestOptions) apply(cmd *cobra.Command, cfg *config.IngestConfig) error {
	f := cmd.Flags()
	if f.Changed("max-size") {
		cfg.MaxFileSize = o.maxSize
	}
	if f.Changed("quota") {
		cfg.QuotaBytes = o.quota
	}
	if f.Changed("max-entries") {
		if o.maxEntries < 0 {
			return fmt.Errorf("--max-entries must not be negative")
		}
		cfg.MaxZipEntries = o.maxEntries
	}
	if f.Changed("fixity") {
		if _, err := ingest.ParseChecksumType(o.fixity); err != nil {
			return err
		}
		cfg.FixityAlgorithm = o.fixity
	}
	if o.tempDir != "" {
		cfg.TempDir = o.tempDir
	}
	if o.storageDir != "" {
		cfg.StorageDir = o.storageDir
	}
	if o.charset != "" {
		cfg.ZipNameCharset = o.charset
	}
	if o.noBagIt {
		cfg.BagItEnabled = false
	}
	return nil
}

func (o *ingestOptions) run(cmd *cobra.Command, path string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := o.apply(cmd, &cfg.Ingest); err != nil {
		return err
	}

	sum, err := ingest.ParseChecksum(o.checksumType, o.checksum)
	if err != nil {
		return err
	}

	log := o.root.logger(cmd)
	pipeline, _, err := core.NewPipeline(cfg.Ingest, log)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	lim := cfg.Ingest.Limits()
	lim.Quota = cfg.Ingest.QuotaBytes.Limit()

	res, err := pipeline.Ingest(cmd.Context(), ingest.UploadRequest{
		Body:        file,
		FileName:    filepath.Base(path),
		ContentType: o.contentType,
		Checksum:    sum,
	}, lim)
	if err != nil {
		return err
	}
	if o.dryRun {
		defer func() {
			if err := res.Release(); err != nil {
				log.Warn("release produced files", "error", err)
			}
		}()
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}

	if !res.Succeeded() {
		return fmt.Errorf("%w: %s", ErrRefused, res.Reason)
	}
	return nil
}
