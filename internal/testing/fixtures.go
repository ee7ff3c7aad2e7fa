package testing

import (
	"os"
	"path/filepath"

	"github.com/stretchr/testify/mock"

	"github.com/lynkia/deployer/internal/runner"
)

// Workspace is an on-disk workspace laid out like a real project:
// backend/ with sources and requirements, terraform/ with a config template.
type Workspace struct {
	Root string
	t    TB
}

// NewWorkspace creates a populated workspace under t.TempDir().
func NewWorkspace(t TB) *Workspace {
	t.Helper()
	w := &Workspace{Root: t.TempDir(), t: t}

	w.Write("backend/requirements.txt", "fastapi==0.110.0\nmangum==0.17.0\n")
	w.Write("backend/main.py", "from fastapi import FastAPI\napp = FastAPI()\n")
	w.Write("backend/handler.py", "from mangum import Mangum\nfrom main import app\nhandler = Mangum(app)\n")
	w.Write("backend/api/__init__.py", "")
	w.Write("backend/api/routes.py", "def webhook():\n    return {}\n")
	w.Write("backend/api/__pycache__/routes.cpython-312.pyc", "compiled")
	w.Write("backend/core/__init__.py", "")
	w.Write("backend/core/settings.py", "DEBUG = False\n")
	w.Write("backend/core/settings.pyc", "compiled")
	w.Write("backend/models/__init__.py", "")
	w.Write("backend/services/__init__.py", "")
	w.Write("backend/services/whatsapp.py", "def reply(text):\n    return text\n")
	w.Write("backend/tests/test_main.py", "def test_nothing():\n    pass\n")
	w.Write("terraform/main.tf", "variable \"lambda_zip\" {}\n")
	w.Write("terraform/terraform.tfvars.example", "twilio_auth_token = \"changeme\"\n")

	return w
}

// WithDeploymentConfig creates terraform/terraform.tfvars.
func (w *Workspace) WithDeploymentConfig() *Workspace {
	w.Write("terraform/terraform.tfvars", "twilio_auth_token = \"secret\"\n")
	return w
}

// Path joins rel (slash separated) onto the root.
func (w *Workspace) Path(rel string) string {
	return filepath.Join(w.Root, filepath.FromSlash(rel))
}

// Write creates rel with content, making parent directories.
func (w *Workspace) Write(rel, content string) {
	w.t.Helper()
	p := w.Path(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		w.t.Fatalf("failed to create %s: %v", filepath.Dir(p), err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		w.t.Fatalf("failed to write %s: %v", p, err)
	}
}

// Exists reports whether rel exists.
func (w *Workspace) Exists(rel string) bool {
	_, err := os.Stat(w.Path(rel))
	return err == nil
}

// Read returns the content of rel.
func (w *Workspace) Read(rel string) []byte {
	w.t.Helper()
	data, err := os.ReadFile(w.Path(rel))
	if err != nil {
		w.t.Fatalf("failed to read %s: %v", rel, err)
	}
	return data
}

// StagePackages returns a mock Run hook that imitates pip: it writes a
// package directory, its .dist-info metadata and a bytecode cache into the
// command's -t target. nameVersion alternates name and version.
func StagePackages(t TB, nameVersion ...string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		cmd := args.Get(1).(runner.Command)
		target := ArgAfter(cmd, "-t")
		if target == "" {
			t.Fatalf("command %s has no -t target", cmd)
		}
		for i := 0; i+1 < len(nameVersion); i += 2 {
			name, version := nameVersion[i], nameVersion[i+1]
			writeFile(t, filepath.Join(target, name, "__init__.py"), "__version__ = \""+version+"\"\n")
			writeFile(t, filepath.Join(target, name, "__pycache__", "__init__.cpython-312.pyc"), "compiled")
			writeFile(t, filepath.Join(target, name+"-"+version+".dist-info", "METADATA"), "Name: "+name+"\n")
		}
	}
}

func writeFile(t TB, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
