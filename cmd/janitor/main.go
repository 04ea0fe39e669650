package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"

	"github.com/jose-valero/verification-bot/internal/infra/storage"
)

const defaultRetentionDays = 30

// handler deletes resolved applications past the retention window. Pending
// ones are never touched.
func handler(ctx context.Context) (string, error) {
	log := logrus.WithField("component", "janitor")

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return "no DATABASE_URL", nil
	}

	days := defaultRetentionDays
	if v := os.Getenv("APPLICATION_RETENTION_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Sprintf("invalid APPLICATION_RETENTION_DAYS %q", v), nil
		}
		days = n
	}

	db, err := storage.Open(ctx, dsn, storage.LambdaPool)
	if err != nil {
		return fmt.Sprintf("open: %v", err), nil
	}
	defer db.Close()

	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	n, err := storage.NewApplicationRepo(db).PurgeResolved(cctx, cutoff)
	if err != nil {
		log.WithError(err).Error("purge failed")
		return "", err
	}
	log.WithField("purged", n).WithField("cutoff", cutoff).Info("purge done")
	return fmt.Sprintf("ok purged=%d", n), nil
}

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	lambda.Start(handler)
}
