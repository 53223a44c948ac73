package core

import (
	"bytes"
	"context"
	"io"
	"log"
	"net"
	"runtime"
	"testing"
	"time"

	"github.com/josephlewis42/subsh/core/config"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	gossh "golang.org/x/crypto/ssh"
)

func startTestServer(t *testing.T) string {
	t.Helper()

	configuration, err := config.InitializeFs(afero.NewMemMapFs(), ".", log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}

	srv, err := NewServer(configuration, io.Discard)
	if err != nil {
		t.Fatal(err)
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	go srv.Serve(l)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	return l.Addr().String()
}

func dialTestServer(t *testing.T, addr, user, password string) *gossh.Client {
	t.Helper()

	client, err := gossh.Dial("tcp", addr, &gossh.ClientConfig{
		User:            user,
		Auth:            []gossh.AuthMethod{gossh.Password(password)},
		HostKeyCallback: gossh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		client.Close()
	})
	return client
}

func TestServerExecRequest(t *testing.T) {
	addr := startTestServer(t)
	client := dialTestServer(t, addr, "admin", "change-me")

	sess, err := client.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	out, err := sess.Output("echo hi")
	assert.Nil(t, err)
	assert.Equal(t, "hi\n", string(out))
}

func TestServerExecPipeline(t *testing.T) {
	addr := startTestServer(t)
	client := dialTestServer(t, addr, "admin", "change-me")

	sess, err := client.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	out, err := sess.Output("echo hi | cat")
	assert.Nil(t, err)
	assert.Equal(t, "hi\n", string(out))
}

func TestServerExecReportsExitStatus(t *testing.T) {
	addr := startTestServer(t)
	client := dialTestServer(t, addr, "admin", "change-me")

	sess, err := client.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	err = sess.Run("false")
	exitErr, ok := err.(*gossh.ExitError)
	if assert.True(t, ok, "expected an exit error, got %v", err) {
		assert.Equal(t, 1, exitErr.ExitStatus())
	}
}

func TestServerExecUnknownProgram(t *testing.T) {
	addr := startTestServer(t)
	client := dialTestServer(t, addr, "admin", "change-me")

	sess, err := client.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	var stderr bytes.Buffer
	sess.Stderr = &stderr

	err = sess.Run("definitely-not-a-real-program-xyz")
	exitErr, ok := err.(*gossh.ExitError)
	if assert.True(t, ok, "expected an exit error, got %v", err) {
		assert.Equal(t, ExitExecFailure, exitErr.ExitStatus())
	}
	assert.Contains(t, stderr.String(), "definitely-not-a-real-program-xyz")
}

func TestServerShellWithoutPtyReleasesGoroutines(t *testing.T) {
	addr := startTestServer(t)
	client := dialTestServer(t, addr, "admin", "change-me")

	baseline := runtime.NumGoroutine()

	// Shell sessions with no PTY must wind down completely once the
	// client closes stdin; a stuck per-connection goroutine shows up as
	// a count that never returns to the baseline.
	for i := 0; i < 5; i++ {
		sess, err := client.NewSession()
		if err != nil {
			t.Fatal(err)
		}
		sess.Stdout = io.Discard
		sess.Stderr = io.Discard
		stdin, err := sess.StdinPipe()
		if err != nil {
			t.Fatal(err)
		}
		if err := sess.Shell(); err != nil {
			t.Fatal(err)
		}
		stdin.Close()
		sess.Wait()
		sess.Close()
	}

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= baseline+1
	}, 5*time.Second, 50*time.Millisecond)
}

func TestServerRejectsBadPassword(t *testing.T) {
	addr := startTestServer(t)

	_, err := gossh.Dial("tcp", addr, &gossh.ClientConfig{
		User:            "admin",
		Auth:            []gossh.AuthMethod{gossh.Password("wrong")},
		HostKeyCallback: gossh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
	assert.Error(t, err)
}
