package daemon

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stalePID is above the default Linux pid_max.
const stalePID = "4194304"

func TestPIDFile_ClaimRead(t *testing.T) {
	// Given: a PID path in a directory that does not exist yet
	pidPath := filepath.Join(t.TempDir(), "nested", "daemon.pid")
	pf := NewPIDFile(pidPath)

	// When: claiming
	require.NoError(t, pf.Claim("/tmp/docsearch.sock"))

	// Then: the current process is recorded and reported alive
	owner, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), owner.PID)
	assert.Equal(t, "/tmp/docsearch.sock", owner.Socket)
	assert.False(t, owner.Started.IsZero())
	assert.True(t, pf.IsRunning())
}

func TestPIDFile_ClaimRefusesLiveOwner(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "daemon.pid"))
	require.NoError(t, pf.Claim(""))

	err := pf.Claim("")

	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestPIDFile_ClaimReplacesStale(t *testing.T) {
	// Given: a file left by a dead process, and one that is garbage
	for _, content := range []string{stalePID, "not-a-pid"} {
		pidPath := filepath.Join(t.TempDir(), "daemon.pid")
		require.NoError(t, os.WriteFile(pidPath, []byte(content), 0o644))
		pf := NewPIDFile(pidPath)

		// When/Then: claiming takes it over
		require.NoError(t, pf.Claim(""), content)
		owner, err := pf.Read()
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), owner.PID)
	}
}

func TestPIDFile_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "daemon.pid"))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if pf.Claim("") == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestPIDFile_ReadBarePID(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "daemon.pid")
	require.NoError(t, os.WriteFile(pidPath, []byte("12345\n"), 0o644))

	owner, err := NewPIDFile(pidPath).Read()

	require.NoError(t, err)
	assert.Equal(t, 12345, owner.PID)
}

func TestPIDFile_ReadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewPIDFile(filepath.Join(dir, "missing.pid")).Read()
	assert.ErrorIs(t, err, ErrPIDFileNotFound)

	bad := filepath.Join(dir, "bad.pid")
	require.NoError(t, os.WriteFile(bad, []byte(`{"pid":0}`), 0o644))
	_, err = NewPIDFile(bad).Read()
	assert.Error(t, err)
}

func TestPIDFile_StalePIDNotRunning(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "daemon.pid")
	require.NoError(t, os.WriteFile(pidPath, []byte(stalePID), 0o644))

	assert.False(t, NewPIDFile(pidPath).IsRunning())
}

func TestPIDFile_Release(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "daemon.pid")
	pf := NewPIDFile(pidPath)
	require.NoError(t, pf.Claim(""))

	require.NoError(t, pf.Release())
	assert.NoFileExists(t, pidPath)

	// Releasing twice is fine
	assert.NoError(t, pf.Release())
	assert.False(t, pf.IsRunning())
}

func TestPIDFile_ReleaseKeepsOtherOwner(t *testing.T) {
	// Given: a file owned by another process
	pidPath := filepath.Join(t.TempDir(), "daemon.pid")
	require.NoError(t, os.WriteFile(pidPath, []byte("1"), 0o644))

	// When: releasing
	require.NoError(t, NewPIDFile(pidPath).Release())

	// Then: the file stays
	assert.FileExists(t, pidPath)
}
