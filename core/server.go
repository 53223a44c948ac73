package core

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/gliderlabs/ssh"
	"github.com/josephlewis42/subsh/core/config"
	"github.com/josephlewis42/subsh/core/logger"
	"github.com/josephlewis42/subsh/core/session"
	"github.com/juju/ratelimit"
)

// Server exposes the execution engine over SSH. Every connection gets its
// own session and shell loop; `ssh host cmd...` exec requests run the
// pre-split command directly through the pipeline executor.
type Server struct {
	configuration *config.Configuration
	logger        *logger.Logger
	sshServer     *ssh.Server
	bucket        *ratelimit.Bucket
}

// NewServer builds a server from the configuration. Events are written as
// JSON lines to logDest.
func NewServer(configuration *config.Configuration, logDest io.Writer) (*Server, error) {
	signer, err := configuration.HostKeySigner()
	if err != nil {
		return nil, fmt.Errorf("loading host key: %w", err)
	}

	srv := &Server{
		configuration: configuration,
		logger:        logger.NewJsonLinesLogRecorder(logDest),
		bucket:        ratelimit.NewBucketWithRate(configuration.SSH.ConnsPerSecond, 1),
	}

	srv.sshServer = &ssh.Server{
		Addr: fmt.Sprintf(":%d", configuration.SSH.Port),
		Handler: func(s ssh.Session) {
			srv.HandleConnection(s)
		},
		PasswordHandler: func(ctx ssh.Context, password string) bool {
			ok := configuration.CheckPassword(ctx.User(), password)
			if !ok {
				srv.logger.Sessionless().Record(&logger.LoginAttempt{
					Success:    false,
					Username:   ctx.User(),
					RemoteAddr: ctx.RemoteAddr().String(),
				})
			}
			return ok
		},
	}
	srv.sshServer.AddHostKey(signer)

	return srv, nil
}

// HandleConnection runs one SSH session to completion.
func (srv *Server) HandleConnection(s ssh.Session) error {
	// Pace accepted connections; a flood waits here, it is not dropped.
	srv.bucket.Wait(1)

	slog := srv.logger.NewSession()
	slog.Record(&logger.LoginAttempt{
		Success:    true,
		Username:   s.User(),
		RemoteAddr: s.RemoteAddr().String(),
		Command:    s.RawCommand(),
	})

	sess, err := session.NewSession()
	if err != nil {
		fmt.Fprintln(s.Stderr(), err)
		return s.Exit(sshExitStatus(ExitInternalError))
	}
	defer sess.Close()

	// Client-supplied variables overlay the host snapshot.
	for _, kv := range s.Environ() {
		split := strings.SplitN(kv, "=", 2)
		if len(split) == 2 {
			_ = sess.Setenv(split[0], split[1])
		}
	}
	_ = sess.Setenv(EnvUser, s.User())

	if banner := srv.configuration.SSH.Banner; banner != "" {
		fmt.Fprintln(s, banner)
	}

	// Exec request: the client already split the command; run it as-is.
	if command := s.Command(); len(command) > 0 {
		return s.Exit(sshExitStatus(srv.runExecRequest(s, sess, slog, command)))
	}

	ptyInfo, winch, isPty := s.Pty()
	windowWidth := ptyInfo.Window.Width
	if isPty {
		// Without a PTY the winch channel is nil and ranging over it
		// would park this goroutine forever.
		go (func() {
			for window := range winch {
				windowWidth = window.Width
			}
		})()
	}

	vio := ShellIO{
		Stdin:  io.NopCloser(s),
		Stdout: s,
		Stderr: s.Stderr(),
		IsTerminal: func() bool {
			return isPty
		},
		Width: func() int {
			if windowWidth > 0 {
				return windowWidth
			}
			return 80
		},
	}

	shell, err := NewShell(srv.configuration, sess, vio, slog)
	if err != nil {
		fmt.Fprintln(s.Stderr(), err)
		return s.Exit(sshExitStatus(ExitInternalError))
	}
	defer shell.Close()

	if err := shell.Run(); err != nil {
		return s.Exit(sshExitStatus(ExitInternalError))
	}
	return s.Exit(sshExitStatus(sess.LastExitCode()))
}

// sshExitStatus maps the engine's -1 sentinel onto the unsigned exit
// status the SSH wire protocol carries.
func sshExitStatus(code int) int {
	if code < 0 || code > 255 {
		return 1
	}
	return code
}

func (srv *Server) runExecRequest(s ssh.Session, sess *session.Session, slog *logger.SessionLogger, command []string) int {
	policy, err := PolicyFromName(srv.configuration.Shell.SourcingPolicy)
	if err != nil {
		fmt.Fprintln(s.Stderr(), err)
		return ExitInternalError
	}

	runner := &Runner{
		Policy:       policy,
		Shell:        srv.configuration.Shell.DefaultShell,
		CaptureLimit: srv.configuration.Shell.CaptureLimit,
		Stdin:        s,
		Stdout:       s,
		Log:          slog,
	}
	pipe := &Pipeline{Runner: runner, Stderr: s.Stderr()}

	code := pipe.Run(sess, SplitPipeline(command))
	if code != 0 {
		if msg, ok := sess.LastError(); ok {
			fmt.Fprintln(s.Stderr(), msg)
		}
	}
	return code
}

// ListenAndServe starts the server on the configured port.
func (srv *Server) ListenAndServe() error {
	return srv.sshServer.ListenAndServe()
}

// Serve accepts connections from the listener. Used by tests to bind an
// ephemeral port.
func (srv *Server) Serve(l net.Listener) error {
	return srv.sshServer.Serve(l)
}

// Shutdown gracefully stops the server.
func (srv *Server) Shutdown(ctx context.Context) error {
	return srv.sshServer.Shutdown(ctx)
}
