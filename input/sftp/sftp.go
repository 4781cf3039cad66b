// Package sftp implements an ioblock.Source that carves a disk image
// staged on a remote evidence server, reached over SFTP rather than copied
// to local storage first. Registers itself under the "sftp" io_strategy,
// grounded on gobeaver-filekit's driver/sftp adapter (session setup, auth
// method selection, connection teardown).
package sftp

import (
	"fmt"
	"io"
	"sync"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/Will-Banksy/carvekit/ioblock"
)

// Config holds the connection parameters for the remote image, mirroring
// driver/sftp.Config's field set.
type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	PrivateKey []byte // PEM-encoded private key, alternative to Password
	// HostKeyCallback defaults to ssh.InsecureIgnoreHostKey when nil - the
	// caller should supply a real one (e.g. from a known_hosts file) for
	// anything beyond a lab exercise.
	HostKeyCallback ssh.HostKeyCallback
	// RemotePath is the path to the image on the remote host.
	RemotePath string
}

func init() {
	ioblock.RegisterSource("sftp", newSource)
}

type source struct {
	mu      sync.Mutex
	sshConn *ssh.Client
	client  *sftp.Client
	f       *sftp.File
}

func newSource(cfg any) (ioblock.Source, error) {
	c, ok := cfg.(*Config)
	if !ok {
		return nil, fmt.Errorf("sftp: expects *Config, got %T", cfg)
	}

	sshConfig := &ssh.ClientConfig{
		User:            c.Username,
		HostKeyCallback: c.HostKeyCallback,
	}
	if sshConfig.HostKeyCallback == nil {
		sshConfig.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	if len(c.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(c.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("sftp: parsing private key: %w", err)
		}
		sshConfig.Auth = append(sshConfig.Auth, ssh.PublicKeys(signer))
	}
	if c.Password != "" {
		sshConfig.Auth = append(sshConfig.Auth, ssh.Password(c.Password))
	}
	if len(sshConfig.Auth) == 0 {
		return nil, fmt.Errorf("sftp: no authentication method provided")
	}

	port := c.Port
	if port == 0 {
		port = 22
	}
	addr := fmt.Sprintf("%s:%d", c.Host, port)

	sshConn, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, fmt.Errorf("sftp: dialing ssh: %w", err)
	}

	client, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return nil, fmt.Errorf("sftp: creating sftp client: %w", err)
	}

	f, err := client.Open(c.RemotePath)
	if err != nil {
		client.Close()
		sshConn.Close()
		return nil, fmt.Errorf("sftp: opening %q: %w", c.RemotePath, err)
	}

	return &source{sshConn: sshConn, client: client, f: f}, nil
}

func (s *source) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.ReadAt(p, off)
}

func (s *source) Len() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fi, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (s *source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if err := s.f.Close(); err != nil && err != io.EOF {
		errs = append(errs, err)
	}
	if err := s.client.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.sshConn.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("sftp: closing connections: %v", errs)
	}
	return nil
}
