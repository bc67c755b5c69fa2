// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		dirs  []string
		want  map[string]string
	}{
		{
			name: "mathpix credentials are trimmed",
			files: map[string]string{
				MathpixAppID:  "  acme_research  \n",
				MathpixAppKey: "mk_xyz789\r\n",
			},
			want: map[string]string{
				MathpixAppID:  "acme_research",
				MathpixAppKey: "mk_xyz789",
			},
		},
		{
			name: "blank files are dropped",
			files: map[string]string{
				MathpixAppKey: "valid-key",
				MathpixAppID:  "   \n\t  ",
				"empty":       "",
			},
			want: map[string]string{MathpixAppKey: "valid-key"},
		},
		{
			name: "dotfiles and directories are ignored",
			files: map[string]string{
				".gitkeep":    "",
				".hidden-key": "secret",
				MathpixAppID:  "app_real",
			},
			dirs: []string{"nested"},
			want: map[string]string{MathpixAppID: "app_real"},
		},
		{
			name: "empty directory",
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				writeFile(t, dir, name, content)
			}
			for _, d := range tt.dirs {
				require.NoError(t, os.Mkdir(filepath.Join(dir, d), 0o755))
				writeFile(t, filepath.Join(dir, d), MathpixAppKey, "shadowed")
			}

			got, err := Load(dir, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_MissingDirectory(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), ".secrets"), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoad_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "plain", "x")
	_, err := Load(filepath.Join(dir, "plain"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading secrets directory")
}

func TestLoad_UnreadableFileIsLogged(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	dir := t.TempDir()
	writeFile(t, dir, MathpixAppID, "value123")
	bad := filepath.Join(dir, MathpixAppKey)
	require.NoError(t, os.WriteFile(bad, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(bad, 0o644) })

	core, logs := observer.New(zap.WarnLevel)
	got, err := Load(dir, zap.New(core))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{MathpixAppID: "value123"}, got)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "could not read secret", entry.Message)
	assert.Equal(t, MathpixAppKey, entry.ContextMap()["name"])
}

func TestResolve(t *testing.T) {
	loaded := map[string]string{MathpixAppID: "from-file"}
	tests := []struct {
		name     string
		key      string
		explicit string
		want     string
	}{
		{name: "explicit wins", key: MathpixAppID, explicit: "from-config", want: "from-config"},
		{name: "falls back to file", key: MathpixAppID, want: "from-file"},
		{name: "missing key", key: MathpixAppKey, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(loaded, tt.key, tt.explicit))
		})
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
