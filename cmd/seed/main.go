package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"code-redemption/internal/config"
	pg "code-redemption/internal/infra/db/postgres"
	"code-redemption/internal/infra/logging"
	"code-redemption/internal/usecase"
)

// seed provisions codes from a file (one per line, or a CSV whose first
// column holds the code after a header row) or from the remaining arguments.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	file := flag.String("file", "", "text or .csv file with codes")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, false)

	values := flag.Args()
	if *file != "" {
		fromFile, err := readCodes(*file)
		if err != nil {
			log.Fatalf("read %s: %v", *file, err)
		}
		values = append(values, fromFile...)
	}
	if len(values) == 0 {
		values = []string{"DEMO001", "DEMO002", "DEMO003", "DEMO004", "DEMO005"}
		fmt.Println("No codes given; seeding demo codes.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	codeUC := usecase.NewCodeUseCase(pg.NewCodeRepo(pool), pg.NewAttemptRepo(pool), logger)
	res, err := codeUC.Provision(ctx, values)
	if err != nil {
		log.Fatalf("provision: %v", err)
	}
	fmt.Printf("imported=%d skipped=%d failed=%d\n", res.Imported, res.Skipped, res.Failed)
	for _, e := range res.Errors {
		fmt.Printf("  - %q: %s\n", e.Value, e.Err)
	}
	if res.Failed > 0 {
		os.Exit(1)
	}
}

func readCodes(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		r := csv.NewReader(f)
		r.FieldsPerRecord = -1
		for first := true; ; first = false {
			rec, err := r.Read()
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			if err != nil {
				return nil, err
			}
			if !first && len(rec) > 0 {
				out = append(out, rec[0])
			}
		}
	}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out, sc.Err()
}
