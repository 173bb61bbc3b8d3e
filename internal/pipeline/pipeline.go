// Package pipeline orchestrates a full crash analysis: sample crashes for a
// signature, anchor them to repository revisions, score the file history for
// the commit that introduced the crash, classify the functions it modified,
// and locate related tests. Stage failures that only degrade the result are
// logged and skipped; the run keeps going.
package pipeline

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/crashscope/crashscope/internal/astparse"
	"github.com/crashscope/crashscope/internal/attribution"
	"github.com/crashscope/crashscope/internal/bugzilla"
	"github.com/crashscope/crashscope/internal/buildhub"
	"github.com/crashscope/crashscope/internal/calls"
	"github.com/crashscope/crashscope/internal/config"
	"github.com/crashscope/crashscope/internal/crashstats"
	"github.com/crashscope/crashscope/internal/diff"
	"github.com/crashscope/crashscope/internal/errors"
	"github.com/crashscope/crashscope/internal/funcmatch"
	"github.com/crashscope/crashscope/internal/hg"
	"github.com/crashscope/crashscope/internal/logging"
	"github.com/crashscope/crashscope/internal/models"
	"github.com/crashscope/crashscope/internal/report"
	"github.com/crashscope/crashscope/internal/storage"
	"github.com/crashscope/crashscope/internal/testscan"
)

// Stage names, used for checkpoints and logging.
const (
	StageCrashes    = "crashes"
	StageCandidates = "candidates"
	StageFunctions  = "functions"
	StageTests      = "tests"
)

// CrashSource samples crash reports for a signature.
type CrashSource interface {
	ProcessedCrash(ctx context.Context, crashID string) (*crashstats.ProcessedCrash, error)
	SampleCrashes(ctx context.Context, signature string, months, perMonth int) ([]crashstats.CrashInstance, error)
}

// BuildResolver maps build IDs to source revisions.
type BuildResolver interface {
	ResolveBuild(ctx context.Context, buildID, product string) (*buildhub.BuildInfo, error)
}

// BugSource fetches bug metadata for cross-checking attributions.
type BugSource interface {
	Bug(ctx context.Context, id string) (*bugzilla.Bug, error)
}

// Pipeline wires the collaborators together for one or more runs.
type Pipeline struct {
	cfg         *config.Config
	repos       *hg.RepoSet
	crashes     CrashSource
	builds      BuildResolver
	bugs        BugSource
	store       storage.Store
	checkpoints *Checkpoints
	log         *logging.Logger
}

// New creates a pipeline. bugs may be nil, in which case the Bugzilla
// cross-check stage is skipped.
func New(cfg *config.Config, repos *hg.RepoSet, crashes CrashSource, builds BuildResolver,
	bugs BugSource, store storage.Store, checkpoints *Checkpoints, log *logging.Logger) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		repos:       repos,
		crashes:     crashes,
		builds:      builds,
		bugs:        bugs,
		store:       store,
		checkpoints: checkpoints,
		log:         log,
	}
}

// Request describes one analysis.
type Request struct {
	// Signature is the crash signature to analyze. Optional when CrashID is
	// given; then the signature comes from the processed crash.
	Signature string
	// CrashID optionally anchors the analysis to one specific crash report.
	CrashID string
	// FixRevision is the changeset whose diff describes the crashing code,
	// typically the fix or the most recent change to the crash site.
	FixRevision string
	// File is the crashing source file, repository-relative.
	File string
	// Channel hints which clone to search first.
	Channel string
	// ResumeRunID continues a previous interrupted run.
	ResumeRunID string
	// SkipCrashSampling analyzes the repository only, without Socorro.
	SkipCrashSampling bool
}

// Run executes the full analysis and returns the assembled report.
func (p *Pipeline) Run(ctx context.Context, req Request) (*report.Report, error) {
	if req.FixRevision == "" || req.File == "" {
		return nil, errors.ValidationErrorf("a fix revision and a target file are required")
	}

	runID := req.ResumeRunID
	resuming := runID != ""
	if runID == "" {
		runID = uuid.New().String()
	}
	log := p.log.With("run", runID)

	run := &models.AnalysisRun{
		ID:        runID,
		Signature: req.Signature,
		CrashID:   req.CrashID,
		Channel:   req.Channel,
		Status:    models.RunRunning,
		StartedAt: time.Now().UTC(),
	}
	if resuming {
		if prev, err := p.store.GetRun(ctx, runID); err == nil {
			run = prev
			run.Status = models.RunRunning
		}
	}
	if err := p.store.SaveRun(ctx, run); err != nil {
		return nil, errors.StorageError(err, "save run")
	}

	rep := &report.Report{
		RunID:       runID,
		Signature:   run.Signature,
		Channel:     req.Channel,
		GeneratedAt: time.Now().UTC(),
	}

	fail := func(err error) (*report.Report, error) {
		p.store.CompleteRun(ctx, runID, models.RunFailed, err.Error())
		return nil, err
	}

	// Stage 1: sample crashes and anchor them to revisions.
	if !req.SkipCrashSampling {
		crashRecords, err := p.stageCrashes(ctx, runID, &req, log)
		if err != nil {
			if errors.IsFatal(err) {
				return fail(err)
			}
			log.Warn("crash sampling failed, continuing with repository analysis", "error", err)
		}
		rep.Crashes = crashRecords
		rep.Signature = req.Signature
		rep.Channel = req.Channel
		if run.Signature != req.Signature {
			run.Signature = req.Signature
			if err := p.store.SaveRun(ctx, run); err != nil {
				log.Warn("failed to update run signature", "error", err)
			}
		}
	}

	// Stage 2: score the file history for candidate commits.
	suspects, suspectDiffs, repo, err := p.stageCandidates(ctx, runID, req, log)
	if err != nil {
		return fail(err)
	}
	rep.Suspects = suspects

	// Stage 3: classify the functions the top suspect modified.
	functions, modifiedNames, err := p.stageFunctions(ctx, runID, req, repo, suspects, suspectDiffs, log)
	if err != nil {
		log.Warn("function classification failed", "error", err)
	}
	rep.Functions = functions

	// Stage 4: locate related tests.
	tests, err := p.stageTests(ctx, runID, req, repo, modifiedNames, log)
	if err != nil {
		log.Warn("test discovery failed", "error", err)
	}
	rep.Tests = tests

	if err := p.store.CompleteRun(ctx, runID, models.RunCompleted, ""); err != nil {
		log.Warn("failed to mark run complete", "error", err)
	}
	if p.checkpoints != nil {
		if err := p.checkpoints.Clear(runID); err != nil {
			log.Warn("failed to clear checkpoints", "error", err)
		}
	}

	return rep, nil
}

// stageCrashes samples crash instances for the signature and resolves each
// build to a revision. Individual lookup failures are logged and skipped.
func (p *Pipeline) stageCrashes(ctx context.Context, runID string, req *Request, log *logging.Logger) ([]*models.CrashRecord, error) {
	var records []*models.CrashRecord
	if p.checkpoints != nil {
		if ok, err := p.checkpoints.LoadStage(runID, StageCrashes, &records); err == nil && ok {
			log.Info("resuming from crash checkpoint", "crashes", len(records))
			return records, nil
		}
	}

	if req.CrashID != "" {
		crash, err := p.crashes.ProcessedCrash(ctx, req.CrashID)
		if err != nil {
			return nil, errors.NetworkError(err, "fetch processed crash")
		}
		req.Signature = crash.Signature
		if req.Channel == "" {
			req.Channel = crash.ReleaseChannel
		}
		log.Info("resolved crash report", "signature", crash.Signature, "channel", crash.ReleaseChannel)
	}
	if req.Signature == "" {
		return nil, errors.ValidationErrorf("no signature: provide one or a crash id")
	}

	instances, err := p.crashes.SampleCrashes(ctx, req.Signature,
		p.cfg.CrashStats.SampleMonths, p.cfg.CrashStats.SamplePerMonth)
	if err != nil {
		return nil, errors.NetworkError(err, "sample crashes")
	}
	log.Info("sampled crash instances", "count", len(instances))

	for _, inst := range instances {
		record := &models.CrashRecord{
			UUID:      inst.UUID,
			RunID:     runID,
			Signature: req.Signature,
			BuildID:   inst.BuildID,
			Version:   inst.Version,
			Channel:   inst.ReleaseChannel,
			CrashDate: inst.Date,
		}
		info, err := p.builds.ResolveBuild(ctx, inst.BuildID, "firefox")
		if err != nil {
			log.Warn("build resolution failed", "build", inst.BuildID, "error", err)
		} else if info != nil {
			record.Revision = info.Revision
			if record.Channel == "" {
				record.Channel = info.Channel
			}
		}
		records = append(records, record)
	}

	if err := p.store.SaveCrashes(ctx, records); err != nil {
		return records, errors.StorageError(err, "save crash records")
	}
	if p.checkpoints != nil {
		if err := p.checkpoints.SaveStage(runID, StageCrashes, records); err != nil {
			log.Warn("failed to checkpoint crashes", "error", err)
		}
	}
	return records, nil
}

// candidateResult carries one scored history commit through the concurrent
// scoring fan-out.
type candidateResult struct {
	entry     hg.HistoryEntry
	candidate attribution.Candidate
	diffText  string
}

// stageCandidates builds the attribution target from the fix revision's diff
// and scores every prior commit that touched the file.
func (p *Pipeline) stageCandidates(ctx context.Context, runID string, req Request, log *logging.Logger) (
	[]*models.SuspectCommit, map[string]string, hg.Repo, error) {

	repo, err := p.repos.Find(ctx, req.FixRevision, req.Channel)
	if err != nil {
		return nil, nil, hg.Repo{}, errors.New(errors.ErrorTypeRepository, errors.SeverityCritical,
			fmt.Sprintf("fix revision %s not found in any configured clone", req.FixRevision))
	}
	log.Info("located fix revision", "channel", repo.Channel)

	fixInfo, err := repo.CommitInfo(ctx, req.FixRevision)
	if err != nil {
		return nil, nil, repo, errors.RepositoryError(err, "read fix commit")
	}
	fixDiff, err := repo.FileDiff(ctx, req.FixRevision, req.File)
	if err != nil {
		return nil, nil, repo, errors.RepositoryError(err, "read fix diff")
	}
	if len(diff.ParseHunks(fixDiff)) == 0 {
		return nil, nil, repo, errors.ValidationErrorf(
			"revision %s did not change %s", req.FixRevision, req.File)
	}

	filter := diff.DefaultIdentifierFilter()
	target := attribution.Target{
		Changes:     diff.ClassifyLines(fixDiff, filter),
		Description: fixInfo.Description,
		Filename:    path.Base(req.File),
	}

	var suspects []*models.SuspectCommit
	suspectDiffs := make(map[string]string)
	if p.checkpoints != nil {
		if ok, err := p.checkpoints.LoadStage(runID, StageCandidates, &suspects); err == nil && ok {
			log.Info("resuming from candidate checkpoint", "suspects", len(suspects))
			// Diffs are cheap to refetch for the resumed suspects.
			for _, s := range suspects {
				if d, err := repo.FileDiff(ctx, s.Revision, req.File); err == nil {
					suspectDiffs[s.Revision] = d
				}
			}
			return suspects, suspectDiffs, repo, nil
		}
	}

	history, err := repo.FileHistory(ctx, req.FixRevision, req.File, p.cfg.Analysis.HistoryLimit)
	if err != nil {
		return nil, nil, repo, errors.RepositoryError(err, "read file history")
	}

	// Drop the fix itself and integration merges.
	candidates := history[:0:0]
	for _, entry := range history {
		if sameRevision(entry.Node, req.FixRevision) {
			continue
		}
		if hg.IsMergeDescription(entry.Description) {
			continue
		}
		candidates = append(candidates, entry)
	}
	log.Info("scoring candidate commits", "candidates", len(candidates), "workers", p.cfg.Analysis.MaxWorkers)

	scorer := attribution.Scorer{}
	var mu sync.Mutex
	var results []candidateResult

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Analysis.MaxWorkers)
	for _, entry := range candidates {
		entry := entry
		g.Go(func() error {
			diffText, err := repo.FileDiff(gctx, entry.Node, req.File)
			if err != nil {
				log.Warn("candidate diff failed, scoring on description only", "revision", entry.Node, "error", err)
			}
			var changes *diff.ChangeSet
			if diffText != "" {
				cs := diff.ClassifyLines(diffText, filter)
				changes = &cs
			}
			cand := scorer.Score(entry.Node, entry.Description, changes, target)
			mu.Lock()
			results = append(results, candidateResult{entry: entry, candidate: cand, diffText: diffText})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, repo, err
	}

	// Second signal: code removed by the fix that a candidate introduced.
	var candidateDiffs []attribution.CandidateDiff
	for _, res := range results {
		if res.diffText != "" {
			candidateDiffs = append(candidateDiffs, attribution.CandidateDiff{
				Candidate: res.candidate,
				DiffText:  res.diffText,
			})
		}
	}
	patternScores := make(map[string]float64)
	for _, m := range attribution.FindBestMatch(fixDiff, candidateDiffs) {
		patternScores[m.Candidate.CommitID] = m.Score
	}

	// Third signal: Bugzilla already knows the regressor.
	regressors := p.knownRegressors(ctx, fixInfo, log)

	for _, res := range results {
		cand := res.candidate
		bucket := attribution.ClassifyScore(cand.Score)
		reasons := append([]string(nil), cand.Reasons...)

		if ps, ok := patternScores[cand.CommitID]; ok {
			bucket = attribution.BucketIntroducing
			reasons = append(reasons, fmt.Sprintf("code removed by fix matches this commit (%.2f)", ps))
		}
		entryBugs := attribution.BugRefs(res.entry.Description)
		for _, b := range entryBugs {
			if regressors[b] {
				bucket = attribution.BucketIntroducing
				reasons = append(reasons, fmt.Sprintf("bug %s is marked as the regressor of the fixed bug", b))
				break
			}
		}
		if bucket == attribution.BucketDiscarded {
			continue
		}

		suspects = append(suspects, &models.SuspectCommit{
			RunID:       runID,
			Revision:    cand.CommitID,
			Channel:     repo.Channel,
			Author:      res.entry.Author,
			Date:        res.entry.Date,
			Description: res.entry.Description,
			BugNumbers:  models.JoinList(entryBugs),
			Score:       cand.Score,
			Bucket:      string(bucket),
			Reasons:     models.JoinList(reasons),
		})
		if res.diffText != "" {
			suspectDiffs[cand.CommitID] = res.diffText
		}
	}

	sort.SliceStable(suspects, func(i, j int) bool {
		if suspects[i].Score != suspects[j].Score {
			return suspects[i].Score > suspects[j].Score
		}
		return suspects[i].Revision < suspects[j].Revision
	})

	if err := p.store.SaveSuspects(ctx, suspects); err != nil {
		return suspects, suspectDiffs, repo, errors.StorageError(err, "save suspects")
	}
	if p.checkpoints != nil {
		if err := p.checkpoints.SaveStage(runID, StageCandidates, suspects); err != nil {
			log.Warn("failed to checkpoint candidates", "error", err)
		}
	}
	return suspects, suspectDiffs, repo, nil
}

// knownRegressors collects, from the fix commit's bugs, the bug numbers
// Bugzilla records as their regressors.
func (p *Pipeline) knownRegressors(ctx context.Context, fixInfo *hg.Commit, log *logging.Logger) map[string]bool {
	regressors := make(map[string]bool)
	if p.bugs == nil {
		return regressors
	}
	for _, bugNo := range fixInfo.BugNumbers {
		bug, err := p.bugs.Bug(ctx, bugNo)
		if err != nil {
			log.Warn("bugzilla lookup failed", "bug", bugNo, "error", err)
			continue
		}
		if bug == nil {
			continue
		}
		for _, reg := range bug.RegressedBy {
			regressors[strconv.Itoa(reg)] = true
		}
	}
	return regressors
}

// stageFunctions parses the pre-change source of the top suspect and maps
// its diff onto function spans.
func (p *Pipeline) stageFunctions(ctx context.Context, runID string, req Request, repo hg.Repo,
	suspects []*models.SuspectCommit, suspectDiffs map[string]string, log *logging.Logger) ([]*models.ModifiedFunction, []string, error) {

	top := topSuspect(suspects)
	if top == nil {
		return nil, nil, nil
	}
	diffText := suspectDiffs[top.Revision]
	if diffText == "" {
		return nil, nil, errors.ValidationErrorf("no diff cached for suspect %s", top.Revision)
	}
	if astparse.LanguageForFile(req.File) == "" {
		log.Info("skipping function classification for non-C/C++ file", "file", req.File)
		return nil, nil, nil
	}

	parent, err := repo.Parent(ctx, top.Revision)
	if err != nil {
		return nil, nil, errors.RepositoryError(err, "resolve suspect parent")
	}
	source, err := repo.Cat(ctx, parent, req.File)
	if err != nil {
		return nil, nil, errors.RepositoryError(err, "read pre-change source")
	}

	functions, err := astparse.ParseFile(req.File, []byte(source))
	if err != nil {
		return nil, nil, errors.ParseError(err, "parse pre-change source")
	}

	hunks := diff.ParseHunks(diffText)
	classification := funcmatch.Classify(hunks, functions)

	extractor := calls.NewExtractor(p.cfg.Analysis.NamespacePrefixes)
	sourceLines := splitLines(source)

	var records []*models.ModifiedFunction
	var names []string
	add := func(mf funcmatch.ModifiedFunction, class string) {
		body := mf.Function.Body(sourceLines)
		lineStrs := make([]string, len(mf.ChangedLines))
		for i, n := range mf.ChangedLines {
			lineStrs[i] = strconv.Itoa(n)
		}
		records = append(records, &models.ModifiedFunction{
			RunID:          runID,
			Revision:       top.Revision,
			File:           req.File,
			Name:           mf.Function.Name,
			StartLine:      mf.Function.StartLine,
			EndLine:        mf.Function.EndLine,
			Classification: class,
			OverlapPercent: mf.OverlapPercentage,
			ChangedLines:   models.JoinList(lineStrs),
			Calls:          models.JoinList(extractor.Extract(body)),
		})
		names = append(names, mf.Function.Name)
	}
	for _, mf := range classification.FullyModified {
		add(mf, models.FullyModified)
	}
	for _, mf := range classification.PartiallyModified {
		add(mf, models.PartiallyModified)
	}
	log.Info("classified modified functions",
		"fully", len(classification.FullyModified), "partially", len(classification.PartiallyModified))

	if err := p.store.SaveFunctions(ctx, records); err != nil {
		return records, names, errors.StorageError(err, "save functions")
	}
	if p.checkpoints != nil {
		if err := p.checkpoints.SaveStage(runID, StageFunctions, records); err != nil {
			log.Warn("failed to checkpoint functions", "error", err)
		}
	}
	return records, names, nil
}

// stageTests scans the repository file list for tests related to the target
// file and checks which mention the modified functions.
func (p *Pipeline) stageTests(ctx context.Context, runID string, req Request, repo hg.Repo,
	modifiedNames []string, log *logging.Logger) ([]*models.RelatedTest, error) {

	files, err := repo.ListFiles(ctx, req.FixRevision)
	if err != nil {
		return nil, errors.RepositoryError(err, "list repository files")
	}

	candidates := testscan.CandidateTestFiles(files, req.File)
	// Content pass over the strongest candidates only; cat-ing hundreds of
	// files would dominate the run time.
	const contentPassLimit = 10
	for i := range candidates {
		if i >= contentPassLimit || len(modifiedNames) == 0 {
			break
		}
		content, err := repo.Cat(ctx, req.FixRevision, candidates[i].Path)
		if err != nil {
			log.Warn("could not read test candidate", "path", candidates[i].Path, "error", err)
			continue
		}
		candidates[i] = testscan.Boost(candidates[i], testscan.MentionedFunctions(content, modifiedNames))
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Path < candidates[j].Path
	})

	var records []*models.RelatedTest
	for _, cand := range candidates {
		reasons := cand.Reasons
		if len(cand.Mentioned) > 0 {
			reasons = append(reasons, "mentions: "+models.JoinList(cand.Mentioned))
		}
		records = append(records, &models.RelatedTest{
			RunID:   runID,
			Path:    cand.Path,
			Score:   cand.Score,
			Reasons: models.JoinList(reasons),
		})
	}
	log.Info("discovered related tests", "count", len(records))

	if err := p.store.SaveTests(ctx, records); err != nil {
		return records, errors.StorageError(err, "save tests")
	}
	if p.checkpoints != nil {
		if err := p.checkpoints.SaveStage(runID, StageTests, records); err != nil {
			log.Warn("failed to checkpoint tests", "error", err)
		}
	}
	return records, nil
}

// topSuspect prefers the best introducing commit, falling back to the best
// related one.
func topSuspect(suspects []*models.SuspectCommit) *models.SuspectCommit {
	for _, s := range suspects {
		if s.Bucket == string(attribution.BucketIntroducing) {
			return s
		}
	}
	if len(suspects) > 0 {
		return suspects[0]
	}
	return nil
}

// sameRevision compares two changeset identifiers that may differ in length
// (short 12-char node vs full hash).
func sameRevision(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	return len(a) >= 12 && b[:len(a)] == a || a == b
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
