package deps

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	target := t.TempDir()
	for _, dir := range []string{
		"fastapi-0.110.0.dist-info",
		"pydantic_core-2.16.3.dist-info",
		"mangum-0.16.0.dist-info",
		"fastapi",
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(target, dir), 0o755))
	}

	file, err := ParseRequirements(strings.NewReader(`fastapi==0.110.0
pydantic-core>=2
mangum==0.17.0
twilio
colorama ; sys_platform == "win32"
`))
	require.NoError(t, err)

	problems, err := Verify(target, file)
	require.NoError(t, err)
	require.Len(t, problems, 2)

	assert.Equal(t, "mangum", problems[0].Requirement.Name)
	assert.Equal(t, "0.16.0", problems[0].Installed)
	assert.Equal(t, "mangum: pinned 0.17.0 (installed 0.16.0)", problems[0].String())

	assert.Equal(t, "twilio", problems[1].Requirement.Name)
	assert.Equal(t, "twilio: no installed metadata", problems[1].String())
}

func TestVerify_LooseVersionEquality(t *testing.T) {
	target := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(target, "six-1.16.dist-info"), 0o755))

	file, err := ParseRequirements(strings.NewReader("six==1.16.0\n"))
	require.NoError(t, err)

	problems, err := Verify(target, file)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestVerify_MissingTarget(t *testing.T) {
	_, err := Verify(filepath.Join(t.TempDir(), "missing"), &File{})
	require.Error(t, err)
}

func TestVerify_SkipsDirectReferences(t *testing.T) {
	target := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(target, "fastapi-0.110.0.dist-info"), 0o755))

	file, err := ParseRequirements(strings.NewReader(`fastapi==0.110.0 --hash=sha256:0123abcd
git+https://github.com/org/pkg.git#egg=pkg
./vendor/localpkg
`))
	require.NoError(t, err)

	problems, err := Verify(target, file)
	require.NoError(t, err)
	assert.Empty(t, problems)
}
