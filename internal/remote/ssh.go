package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/logger"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHRunner executes commands on registered hosts, one connection per command.
//
// Cancelling ctx closes the session and the connection. Whether the remote
// process stops depends on how it handles the hang-up; a command that ignores
// it keeps running on the host.
type SSHRunner struct {
	dialTimeout time.Duration
	log         logger.Logger

	mu      sync.Mutex
	configs map[string]*ssh.ClientConfig
}

func NewSSHRunner(dialTimeout time.Duration, log logger.Logger) *SSHRunner {
	return &SSHRunner{
		dialTimeout: dialTimeout,
		log:         log,
		configs:     make(map[string]*ssh.ClientConfig),
	}
}

func (r *SSHRunner) Run(ctx context.Context, host domain.Host, cmd domain.Command) (*domain.CommandResult, error) {
	line := Render(cmd)
	fail := func(res *domain.CommandResult, err error) *domain.RemoteError {
		re := &domain.RemoteError{Target: host.Name, Command: line, Err: err}
		if res != nil {
			re.ExitCode = res.ExitCode
			re.Stderr = res.Stderr
		}
		return re
	}

	client, err := r.dial(ctx, host)
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			return nil, err
		}
		return nil, fail(nil, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, fail(nil, fmt.Errorf("failed to open session: %w", err))
	}
	defer session.Close()

	out := newOutput(cmd.OnLine)
	stdout, stderr, wait := out.pipes()
	session.Stdout = stdout
	session.Stderr = stderr
	if cmd.Stdin != nil {
		session.Stdin = bytes.NewReader(cmd.Stdin)
	}

	if err := session.Start(line); err != nil {
		wait()
		return nil, fail(nil, fmt.Errorf("failed to start command: %w", err))
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	var runErr error
	select {
	case runErr = <-done:
	case <-ctx.Done():
		session.Signal(ssh.SIGTERM)
		client.Close()
		<-done
		wait()
		res := out.result(-1)
		return res, fail(res, ctx.Err())
	}

	streamErr := wait()

	if runErr != nil {
		var exitErr *ssh.ExitError
		if errors.As(runErr, &exitErr) {
			res := out.result(exitErr.ExitStatus())
			return res, fail(res, nil)
		}
		res := out.result(-1)
		return res, fail(res, runErr)
	}

	res := out.result(0)
	if streamErr != nil {
		return res, fail(res, streamErr)
	}

	return res, nil
}

func (r *SSHRunner) dial(ctx context.Context, host domain.Host) (*ssh.Client, error) {
	cfg, err := r.clientConfig(host)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(host.Address, strconv.Itoa(host.Port))

	d := net.Dialer{Timeout: r.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	if r.dialTimeout > 0 {
		conn.SetDeadline(time.Now().Add(r.dialTimeout))
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	conn.SetDeadline(time.Time{})

	r.log.Debug("remote: connected", "host", host.Name, "addr", addr)
	return ssh.NewClient(c, chans, reqs), nil
}

func (r *SSHRunner) clientConfig(host domain.Host) (*ssh.ClientConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg, ok := r.configs[host.Name]; ok {
		return cfg, nil
	}

	if host.KeyFile == "" {
		return nil, fmt.Errorf("%w: host %s has no key_file", domain.ErrConfiguration, host.Name)
	}

	key, err := os.ReadFile(host.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read key for host %s: %v", domain.ErrConfiguration, host.Name, err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: parse key for host %s: %v", domain.ErrConfiguration, host.Name, err)
	}

	hostKeyCallback, err := hostKeyCallbackFor(host)
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ClientConfig{
		User:            host.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         r.dialTimeout,
	}
	r.configs[host.Name] = cfg

	return cfg, nil
}

func hostKeyCallbackFor(host domain.Host) (ssh.HostKeyCallback, error) {
	if host.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	file := host.KnownHostsFile
	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("%w: host %s: no known_hosts_file and no home directory", domain.ErrConfiguration, host.Name)
		}
		file = filepath.Join(home, ".ssh", "known_hosts")
	}

	cb, err := knownhosts.New(file)
	if err != nil {
		return nil, fmt.Errorf("%w: known hosts for %s: %v", domain.ErrConfiguration, host.Name, err)
	}

	return cb, nil
}
