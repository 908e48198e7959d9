package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"codeindex/internal/model"
	"codeindex/internal/pipeline"
	"codeindex/internal/store"
)

// defaultExcludeDirs are skipped during repo ingestion regardless of
// the caller's exclude globs.
var defaultExcludeDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	".next":        true,
	"__pycache__":  true,
}

// RepoOptions configures one git-repo ingestion pass.
type RepoOptions struct {
	RepoURL        string
	Branch         string
	SparsePath     string // optional subtree; enables git sparse-checkout
	Token          string // injected as a credential for HTTPS clones of private repos
	Include        []string
	Exclude        []string
	Retain         bool // keep the temp clone directory instead of removing it
	MaxConcurrency int
}

// Repo shallow-clones RepoOptions.RepoURL at RepoOptions.Branch,
// walks the checked-out tree applying the default and caller-provided
// exclusions, and feeds every remaining file through the same
// pipeline as Files. Source URLs are synthesized as
// <host>/<owner>/<repo>/blob/<branch>/<path>.
func Repo(ctx context.Context, st *store.Store, pipe *pipeline.Pipeline, job *model.Job, opts RepoOptions) ([]Result, error) {
	branch := opts.Branch
	if branch == "" {
		branch = "main"
	}

	cloneURL, host, owner, repoName, err := resolveCloneURL(opts.RepoURL, opts.Token)
	if err != nil {
		return nil, fmt.Errorf("resolve repo url: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "codeindex-repo-*")
	if err != nil {
		return nil, fmt.Errorf("create clone dir: %w", err)
	}
	if !opts.Retain {
		defer os.RemoveAll(tmpDir)
	}

	if err := shallowClone(ctx, cloneURL, branch, tmpDir, opts.SparsePath); err != nil {
		return nil, fmt.Errorf("clone repo: %w", err)
	}

	root := tmpDir
	if opts.SparsePath != "" {
		root = filepath.Join(tmpDir, opts.SparsePath)
	}

	files, err := collectRepoFiles(root, opts.Include, opts.Exclude)
	if err != nil {
		return nil, fmt.Errorf("walk repo tree: %w", err)
	}

	maxConcurrency := opts.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	results := make([]Result, len(files))
	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i, relPath := range files {
		i, relPath := i, relPath
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = Result{Err: ctx.Err()}
				return
			}

			content, err := os.ReadFile(filepath.Join(root, relPath))
			if err != nil {
				results[i] = Result{Err: err}
				return
			}
			docURL := fmt.Sprintf("%s/%s/%s/blob/%s/%s", host, owner, repoName, branch, filepath.ToSlash(relPath))
			results[i] = ingestDocument(ctx, st, pipe, job, docURL, relPath, content)
		}()
	}

	wg.Wait()
	return results, nil
}

// resolveCloneURL rewrites an https remote to embed a token credential
// when given, and extracts host/owner/repo for synthetic source URLs.
func resolveCloneURL(rawURL, token string) (cloneURL, host, owner, repo string, err error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(rawURL), ".git")

	if strings.HasPrefix(trimmed, "git@") {
		withoutUser := strings.TrimPrefix(trimmed, "git@")
		h, p, ok := strings.Cut(withoutUser, ":")
		if !ok {
			return "", "", "", "", fmt.Errorf("unrecognized git remote %q", rawURL)
		}
		host = h
		owner, repo, ok = splitOwnerRepo(p)
		if !ok {
			return "", "", "", "", fmt.Errorf("unable to parse owner/repo from %q", rawURL)
		}
		return rawURL, host, owner, repo, nil
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", "", "", "", err
	}
	host = u.Host
	owner, repo, ok := splitOwnerRepo(strings.TrimPrefix(u.Path, "/"))
	if !ok {
		return "", "", "", "", fmt.Errorf("unable to parse owner/repo from %q", rawURL)
	}

	if token != "" {
		authed := *u
		authed.User = url.UserPassword("x-access-token", token)
		cloneURL = authed.String()
	} else {
		cloneURL = u.String()
	}
	return cloneURL, host, owner, repo, nil
}

func splitOwnerRepo(path string) (owner, repo string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// shallowClone runs `git clone --depth 1 --branch <branch> --single-branch`,
// then `git sparse-checkout` when sparsePath narrows the tree.
func shallowClone(ctx context.Context, cloneURL, branch, dest, sparsePath string) error {
	args := []string{"clone", "--depth", "1", "--branch", branch, "--single-branch", cloneURL, dest}
	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git clone: %w: %s", err, strings.TrimSpace(string(out)))
	}

	if sparsePath == "" {
		return nil
	}

	initCmd := exec.CommandContext(ctx, "git", "-C", dest, "sparse-checkout", "init", "--cone")
	if out, err := initCmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git sparse-checkout init: %w: %s", err, strings.TrimSpace(string(out)))
	}
	setCmd := exec.CommandContext(ctx, "git", "-C", dest, "sparse-checkout", "set", sparsePath)
	if out, err := setCmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git sparse-checkout set: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// collectRepoFiles walks root, skipping default-excluded directories
// and any path matching an exclude glob, keeping only files that
// match an include glob when include globs are given.
func collectRepoFiles(root string, include, exclude []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if defaultExcludeDirs[d.Name()] {
				return filepath.SkipDir
			}
			if matchesAny(rel, exclude) {
				return filepath.SkipDir
			}
			return nil
		}

		if matchesAny(rel, exclude) {
			return nil
		}
		if len(include) > 0 && !matchesAny(rel, include) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func matchesAny(relPath string, patterns []string) bool {
	slashPath := filepath.ToSlash(relPath)
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, slashPath); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(slashPath)); ok {
			return true
		}
	}
	return false
}
