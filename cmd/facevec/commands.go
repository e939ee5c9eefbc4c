package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/hupe1980/facevec"
	"github.com/hupe1980/facevec/attendance"
	"github.com/hupe1980/facevec/internal/config"
)

const usage = `usage: facevec [-config file] <command> [args]

commands:
  stats                       print index statistics
  search <vector.json> [k]    print the k nearest users (default 1)
  add <user_id> <vector.json> replace the embedding of a user
  delete <user_id>            remove every embedding of a user
  verify <user_id> <vector.json>
                              check a face against the user's registered one
                              within the configured threshold
  persist                     rewrite the snapshot
`

var errUsage = errors.New("invalid arguments")

// run opens the index once and executes one command.
func run(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) (err error) {
	if len(args) == 0 {
		return errUsage
	}

	opts := cfg.IndexOptions()
	store, err := newBlobStore(ctx, cfg.Backend)
	if err != nil {
		return err
	}
	if store != nil {
		opts = append(opts, facevec.WithBlobStore(store))
	}

	idx, err := facevec.Open(ctx, opts...)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, idx.Close())
	}()

	cmd, args := args[0], args[1:]
	switch cmd {
	case "stats":
		if len(args) != 0 {
			return errUsage
		}
		return writeJSON(stdout, idx.Stats())

	case "search":
		if len(args) < 1 || len(args) > 2 {
			return errUsage
		}
		k := 1
		if len(args) == 2 {
			if k, err = strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("k: %w", err)
			}
		}
		query, err := readVector(args[0])
		if err != nil {
			return err
		}
		matches, err := idx.Search(ctx, query, k)
		if err != nil {
			return err
		}
		return writeJSON(stdout, matches)

	case "add":
		if len(args) != 2 {
			return errUsage
		}
		user, err := parseUser(args[0])
		if err != nil {
			return err
		}
		embedding, err := readVector(args[1])
		if err != nil {
			return err
		}
		pos, replaced, err := idx.Replace(ctx, user, embedding)
		if err != nil {
			return err
		}
		return writeJSON(stdout, map[string]any{"user_id": user, "position": pos, "replaced": replaced})

	case "delete":
		if len(args) != 1 {
			return errUsage
		}
		user, err := parseUser(args[0])
		if err != nil {
			return err
		}
		removed, err := idx.DeleteByUser(ctx, user)
		if err != nil {
			return err
		}
		return writeJSON(stdout, map[string]any{"user_id": user, "removed": removed})

	case "verify":
		if len(args) != 2 {
			return errUsage
		}
		user, err := parseUser(args[0])
		if err != nil {
			return err
		}
		image, err := readInput(args[1])
		if err != nil {
			return err
		}
		svc := attendance.NewService(idx, vectorProducer,
			attendance.WithThreshold(float32(cfg.Threshold)),
			attendance.WithLogger(cfg.Logger()),
		)
		v, err := svc.Verify(ctx, user, image)
		if err != nil {
			return err
		}
		return writeJSON(stdout, v)

	case "persist":
		if len(args) != 0 {
			return errUsage
		}
		if err := idx.Persist(ctx); err != nil {
			return err
		}
		return writeJSON(stdout, idx.Stats())

	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

func parseUser(s string) (facevec.UserID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("user_id: %w", err)
	}
	return facevec.UserID(id), nil
}

// readInput reads path, or stdin for "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// readVector reads a JSON array of numbers from path, or stdin for "-".
func readVector(path string) ([]float32, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}

	var v []float32
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return v, nil
}

// vectorProducer treats the input as an already computed embedding of a
// single face.
var vectorProducer = attendance.EmbeddingProducerFunc(func(_ context.Context, data []byte) ([][]float32, error) {
	var v []float32
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return [][]float32{v}, nil
})

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
