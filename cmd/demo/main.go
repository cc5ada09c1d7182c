package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"code-redemption/internal/config"
	"code-redemption/internal/domain/model"
	pg "code-redemption/internal/infra/db/postgres"
	"code-redemption/internal/infra/logging"
	"code-redemption/internal/infra/messages"
	"code-redemption/internal/usecase"
)

// demo walks one provisioning and redemption round against the configured
// database. Codes carry a per-run suffix so the demo can be repeated; the
// printed counts are deltas against the store as it was before the run.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer pool.Close()

	codes := pg.NewCodeRepo(pool)
	attempts := pg.NewAttemptRepo(pool)
	codeUC := usecase.NewCodeUseCase(codes, attempts, logger)
	redeemUC := usecase.NewRedemptionUseCase(codes, attempts, pg.NewTxManager(pool), messages.NewRenderer(cfg.Messages), nil, nil,
		usecase.RedemptionOptions{LogFailedAttempts: true, Dev: true}, logger)

	before, err := codeUC.Stats(ctx)
	if err != nil {
		log.Fatalf("stats: %v", err)
	}

	suffix := time.Now().UTC().Format("20060102150405")
	demo1, demo2 := "DEMO001-"+suffix, "DEMO002-"+suffix
	res, err := codeUC.Provision(ctx, []string{demo1, demo2})
	if err != nil {
		log.Fatalf("provision: %v", err)
	}
	log.Printf("provisioned: imported=%d skipped=%d", res.Imported, res.Skipped)

	steps := []struct{ code, name string }{
		{demo1, "Alice"},
		{demo1, "Bob"},
		{demo2, "Carol"},
		{"UNKNOWN-" + suffix, ""},
	}
	for _, s := range steps {
		out, err := redeemUC.Authenticate(ctx, model.RedemptionRequest{
			Code:    s.code,
			Contact: model.Contact{Name: s.name},
			Client:  model.ClientInfo{IP: "127.0.0.1", UserAgent: "demo"},
		})
		if err != nil {
			log.Fatalf("authenticate %s: %v", s.code, err)
		}
		fmt.Printf("%-24s %-6s success=%-5v reason=%s\n", s.code, s.name, out.Success, out.InternalReason)
	}

	st, err := codeUC.Stats(ctx)
	if err != nil {
		log.Fatalf("stats: %v", err)
	}
	fmt.Printf("total=+%d used=+%d unused=+%d\n", st.Total-before.Total, st.Used-before.Used, st.Unused-before.Unused)
}
