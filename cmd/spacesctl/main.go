// spacesctl is a small command-line driver for the Spaces object-store
// client: bucket checks, folder management, and file transfer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"dospaces/internal/config"
	"dospaces/internal/metrics"
	"dospaces/internal/storage/spaces"
)

const usage = `usage: spacesctl <command> [args]

commands:
  connect [bucket]          confirm the bucket is reachable
  buckets                   list buckets owned by the credential
  create-bucket             create the configured bucket
  mkdir <folder>            create a folder
  rmdir <folder>            delete a folder and its contents
  ls [prefix]               list subfolders under prefix
  contents <folder>         list the immediate children of a folder
  exists <path>             check whether a file exists
  put <local-file> <key>    upload a local file
  get <key> [local-file]    download an object (stdout when no file given)
  rm <key>                  delete a file
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "spacesctl:", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	chunked := flag.Bool("chunked", false, "force the multipart path for put")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return errors.New("missing command")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	opID := uuid.New().String()
	logger = logger.With(zap.String("op_id", opID))

	collector := metrics.NewCollector(prometheus.NewRegistry())

	ctx := context.Background()
	client, err := spaces.NewClient(ctx, &cfg.Spaces, logger, collector)
	if err != nil {
		return fmt.Errorf("failed to initialize spaces client: %w", err)
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "connect":
		bucket := ""
		if len(rest) > 0 {
			bucket = rest[0]
		}
		name, err := client.Connect(ctx, bucket)
		if err != nil {
			return err
		}
		fmt.Println(name)
		return nil

	case "buckets":
		names, err := client.ListBuckets(ctx)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil

	case "create-bucket":
		return client.CreateBucket(ctx)

	case "mkdir":
		if len(rest) != 1 {
			return errors.New("mkdir requires a folder path")
		}
		return client.CreateFolder(ctx, rest[0])

	case "rmdir":
		if len(rest) != 1 {
			return errors.New("rmdir requires a folder path")
		}
		return client.DeleteFolder(ctx, rest[0])

	case "ls":
		prefix := ""
		if len(rest) > 0 {
			prefix = rest[0]
		}
		folders, err := client.ListFolders(ctx, prefix)
		if err != nil {
			return err
		}
		for _, f := range folders {
			fmt.Println(f)
		}
		return nil

	case "contents":
		if len(rest) != 1 {
			return errors.New("contents requires a folder path")
		}
		entries, err := client.ListFolderContents(ctx, rest[0])
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Println(e)
		}
		return nil

	case "exists":
		if len(rest) != 1 {
			return errors.New("exists requires a path")
		}
		ok, err := client.FileExists(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Println(ok)
		return nil

	case "put":
		if len(rest) != 2 {
			return errors.New("put requires a local file and a key")
		}
		return put(ctx, client, rest[0], rest[1], *chunked)

	case "get":
		if len(rest) < 1 || len(rest) > 2 {
			return errors.New("get requires a key and an optional local file")
		}
		local := ""
		if len(rest) == 2 {
			local = rest[1]
		}
		return get(ctx, client, rest[0], local)

	case "rm":
		if len(rest) != 1 {
			return errors.New("rm requires a key")
		}
		return client.DeleteFile(ctx, rest[0])

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// put uploads a local file, routing large files through the chunked path.
func put(ctx context.Context, client *spaces.Client, local, key string, chunked bool) error {
	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("opening %s: %w", local, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", local, err)
	}

	if chunked || info.Size() > spaces.DefaultUploadChunkSize {
		return client.UploadFileChunked(ctx, key, f, 0)
	}
	return client.UploadFile(ctx, key, f)
}

// get streams an object to a local file, or to stdout when local is empty.
func get(ctx context.Context, client *spaces.Client, key, local string) error {
	stream, err := client.ReadFile(ctx, key, 0)
	if err != nil {
		return err
	}
	defer stream.Close()

	var out io.Writer = os.Stdout
	if local != "" {
		f, err := os.Create(local)
		if err != nil {
			return fmt.Errorf("creating %s: %w", local, err)
		}
		defer f.Close()
		out = f
	}

	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := out.Write(chunk); err != nil {
			return fmt.Errorf("writing %s: %w", key, err)
		}
	}
}

// buildLogger constructs a zap logger per the log config.
func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}
