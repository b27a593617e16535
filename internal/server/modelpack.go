package server

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/kartoza/laptop-pricer/internal/config"
	"github.com/kartoza/laptop-pricer/internal/httputil"
	"github.com/kartoza/laptop-pricer/internal/predict"
	"go.uber.org/zap"
)

// modelPackManifest describes the contents of a model pack zip
type modelPackManifest struct {
	Format      string `json:"format"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Created     string `json:"created"`
}

// handleModelPackStatus returns the current model pack status
func (s *Server) handleModelPackStatus(w http.ResponseWriter, r *http.Request) {
	modelLoaded := s.Service().HasModel()

	settings, err := config.LoadSettings()
	if err != nil {
		httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"installed":    false,
			"model_loaded": modelLoaded,
			"error":        err.Error(),
		})
		return
	}

	if settings.ModelPackPath == "" {
		httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"installed":    false,
			"model_loaded": modelLoaded,
		})
		return
	}

	// Check if path still exists
	if _, err := os.Stat(settings.ModelPackPath); err != nil {
		httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"installed":    false,
			"model_loaded": modelLoaded,
			"error":        "model pack path no longer exists",
		})
		return
	}

	manifest, _ := readManifest(settings.ModelPackPath)
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"installed":    true,
		"model_loaded": modelLoaded,
		"path":         settings.ModelPackPath,
		"version":      manifest.Version,
		"description":  manifest.Description,
	})
}

// handleModelPackInstall extracts a model pack zip, builds a service from
// it and swaps it in
func (s *Server) handleModelPackInstall(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Path == "" {
		httputil.RespondError(w, http.StatusBadRequest, "path is required")
		return
	}

	// Validate file exists and is a zip
	if _, err := os.Stat(req.Path); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("file not found: %s", req.Path))
		return
	}
	if !strings.HasSuffix(strings.ToLower(req.Path), ".zip") {
		httputil.RespondError(w, http.StatusBadRequest, "file must be a .zip archive")
		return
	}

	s.installMu.Lock()
	defer s.installMu.Unlock()

	storeDir, err := config.DataStoreDir()
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("could not determine data directory: %v", err))
		return
	}
	extractDir := filepath.Join(storeDir, "modelpacks")
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("could not create directory: %v", err))
		return
	}

	// The pack is unpacked into a staging directory and only moved over the
	// installed copy once it builds, so a bad pack leaves disk and service
	// as they were.
	staging, err := extractModelPack(req.Path, extractDir)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("extraction failed: %v", err))
		return
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()

	root := packRoot(staging)
	manifest, err := readManifest(root)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("invalid model pack: %v", err))
		return
	}
	if _, err := os.Stat(filepath.Join(root, "model.json")); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid model pack: missing model.json")
		return
	}

	svc, err := predict.Build(s.cfg.WithModelPack(root), s.logger)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("invalid model pack: %v", err))
		return
	}

	rel, err := filepath.Rel(staging, root)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("could not place model pack: %v", err))
		return
	}
	installDir := filepath.Join(extractDir, packName(req.Path))
	if err := replaceDir(staging, installDir); err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("could not place model pack: %v", err))
		return
	}
	committed = true
	packDir := filepath.Join(installDir, rel)

	settings, _ := config.LoadSettings()
	settings.ModelPackPath = packDir
	if err := config.SaveSettings(settings); err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("could not save settings: %v", err))
		return
	}

	s.service.Store(svc)

	s.logger.Info("model pack installed",
		zap.String("path", packDir),
		zap.String("version", manifest.Version),
	)
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"installed": true,
		"path":      packDir,
		"version":   manifest.Version,
		"message":   "Model pack installed successfully.",
	})
}

func readManifest(packDir string) (modelPackManifest, error) {
	var manifest modelPackManifest
	data, err := os.ReadFile(filepath.Join(packDir, "manifest.json"))
	if err != nil {
		return manifest, errors.New("missing manifest.json")
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return manifest, fmt.Errorf("manifest.json: %w", err)
	}
	return manifest, nil
}

// extractModelPack unzips a model pack archive into a fresh staging
// directory under targetDir and returns it. Nothing is left behind on error.
func extractModelPack(zipPath, targetDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("could not open zip: %w", err)
	}
	defer r.Close()

	if len(r.File) == 0 {
		return "", fmt.Errorf("empty zip archive")
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("could not create directory: %w", err)
	}
	staging, err := os.MkdirTemp(targetDir, ".staging-")
	if err != nil {
		return "", fmt.Errorf("could not create staging directory: %w", err)
	}

	for _, f := range r.File {
		// Sanitize path to prevent zip slip
		destPath := filepath.Join(staging, f.Name)
		if !strings.HasPrefix(destPath, filepath.Clean(staging)+string(os.PathSeparator)) {
			os.RemoveAll(staging)
			return "", fmt.Errorf("illegal file path in zip: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			os.MkdirAll(destPath, 0o755)
			continue
		}

		if err := extractFile(f, destPath); err != nil {
			os.RemoveAll(staging)
			return "", err
		}
	}

	return staging, nil
}

// packName is the install directory name for an archive.
func packName(zipPath string) string {
	return strings.TrimSuffix(filepath.Base(zipPath), filepath.Ext(zipPath))
}

// replaceDir moves src to dst, replacing any existing dst. The old dst is
// restored if the move fails.
func replaceDir(src, dst string) error {
	backup := dst + ".previous"
	os.RemoveAll(backup)

	hadOld := false
	if _, err := os.Stat(dst); err == nil {
		if err := os.Rename(dst, backup); err != nil {
			return fmt.Errorf("could not move old pack aside: %w", err)
		}
		hadOld = true
	}

	if err := os.Rename(src, dst); err != nil {
		if hadOld {
			os.Rename(backup, dst)
		}
		return fmt.Errorf("could not install pack: %w", err)
	}
	if hadOld {
		os.RemoveAll(backup)
	}
	return nil
}

func extractFile(f *zip.File, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("could not create directory: %w", err)
	}

	outFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer outFile.Close()

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("could not open zip entry: %w", err)
	}
	defer rc.Close()

	if _, err := io.Copy(outFile, rc); err != nil {
		return fmt.Errorf("could not extract file: %w", err)
	}
	return nil
}

// packRoot descends into a single wrapping folder when the manifest is not
// at the top.
func packRoot(dir string) string {
	if _, err := os.Stat(filepath.Join(dir, "manifest.json")); err == nil {
		return dir
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return dir
	}
	return filepath.Join(dir, entries[0].Name())
}
