package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/webproof-contributors/internal/model"
	"github.com/sakif/webproof-contributors/internal/normalize"
)

const noWebproofsMessage = "No webproofs found"

// BatchService re-verifies every proof document in a directory and ranks the
// contributors they attest.
type BatchService struct {
	verifier    Verifier
	files       fs.FS
	concurrency int
	normalizer  *normalize.Normalizer
	logger      *slog.Logger
}

// NewBatchService reads proof documents from files. concurrency bounds the
// number of verifications in flight; values below 1 mean sequential.
func NewBatchService(v Verifier, files fs.FS, concurrency int, logger *slog.Logger) *BatchService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchService{
		verifier:    v,
		files:       files,
		concurrency: concurrency,
		normalizer:  normalize.New(logger),
		logger:      logger,
	}
}

// VerifyAll verifies each *.json document. Documents that fail to read,
// verify or normalize are skipped. Contributors are ordered by contributions,
// highest first, with ties kept in filename order.
func (s *BatchService) VerifyAll(ctx context.Context) (*model.BatchResult, error) {
	names, err := s.proofFiles()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return &model.BatchResult{
			Contributors: []model.PublicContributor{},
			Message:      noWebproofsMessage,
		}, nil
	}

	slots := make([]*model.PublicContributor, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, name := range names {
		g.Go(func() error {
			slots[i] = s.verifyFile(gctx, name)
			// A cancelled parent stops the batch; per-file failures do not.
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("service/batch: %w", err)
	}

	contributors := make([]model.PublicContributor, 0, len(names))
	for _, c := range slots {
		if c != nil {
			contributors = append(contributors, *c)
		}
	}
	sort.SliceStable(contributors, func(i, j int) bool {
		return contributors[i].Contributions > contributors[j].Contributions
	})

	s.logger.Info("batch verification finished",
		slog.Int("files", len(names)),
		slog.Int("verified", len(contributors)),
	)

	return &model.BatchResult{
		Contributors:   contributors,
		TotalVerified:  len(contributors),
		FilesProcessed: len(names),
	}, nil
}

func (s *BatchService) proofFiles() ([]string, error) {
	entries, err := fs.ReadDir(s.files, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("service/batch: reading proof directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// verifyFile returns nil when the document yields no contributor.
func (s *BatchService) verifyFile(ctx context.Context, name string) *model.PublicContributor {
	log := s.logger.With(slog.String("file", name))

	data, err := fs.ReadFile(s.files, path.Clean(name))
	if err != nil {
		log.Warn("skipping proof: unreadable", slog.String("error", err.Error()))
		return nil
	}
	if !json.Valid(data) {
		log.Warn("skipping proof: invalid JSON")
		return nil
	}

	raw, err := s.verifier.Verify(ctx, json.RawMessage(data))
	if err != nil {
		log.Warn("skipping proof: verification failed", slog.String("error", err.Error()))
		return nil
	}

	verification, err := normalize.ParseVerification(raw)
	if err != nil {
		log.Warn("skipping proof: unreadable verification", slog.String("error", err.Error()))
		return nil
	}

	username := ParseProofFilename(name)
	rec := s.normalizer.Normalize(verification.ResponseBody(), username)
	if rec == nil {
		log.Info("skipping proof: no contributor data", slog.String("username", username))
		return nil
	}

	repo := s.normalizer.ExtractRepoInfo(verification)
	pc := model.NewPublicContributor(*rec, repo.Owner, repo.Name)
	return &pc
}
