package imap

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/quotedprintable"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"

	"intake/internal/config"
	"intake/internal/domain"
)

// StoreUnavailableError means the mailbox server could not be reached or refused
// the session. A batch run stops when it sees one.
type StoreUnavailableError struct {
	Addr string
	Op   string
	Err  error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("mailbox %s unavailable (%s): %v", e.Addr, e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

func (e *StoreUnavailableError) Is(target error) bool {
	return target == domain.ErrStoreUnavailable
}

// Store downloads attachment parts from an IMAP mailbox. It implements
// port.AttachmentStore.
type Store struct {
	addr           string
	username       string
	password       string
	tlsConfig      *tls.Config
	dialTimeout    time.Duration
	commandTimeout time.Duration
	locks          *mailboxLocks
	logger         *zap.Logger
}

// NewStore creates an IMAP attachment store.
func NewStore(cfg *config.MailboxConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		addr:           cfg.Addr(),
		username:       cfg.Username,
		password:       cfg.Password,
		dialTimeout:    cfg.DialTimeout,
		commandTimeout: cfg.CommandTimeout,
		locks:          newMailboxLocks(),
		logger:         logger,
	}
	if cfg.TLS {
		s.tlsConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	}
	if s.dialTimeout <= 0 {
		s.dialTimeout = 15 * time.Second
	}
	return s
}

// Fetch downloads and decodes one attachment part. An empty part yields (nil, nil).
// Dial, login and connection failures return *StoreUnavailableError. A NO or
// BAD reply to EXAMINE (missing or renamed mailbox) and a missing message or
// part are reported as domain.ErrAttachmentDownloadFailed.
func (s *Store) Fetch(ctx context.Context, locator domain.AttachmentLocator) ([]byte, error) {
	path, err := parsePartPath(locator.Part)
	if err != nil {
		return nil, fmt.Errorf("imap.Fetch: %w: %w", domain.ErrAttachmentDownloadFailed, err)
	}

	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = c.Terminate() })
	defer func() {
		stop()
		if err := c.Logout(); err != nil {
			s.logger.Debug("imap.Fetch: logout failed", zap.Error(err))
		}
	}()

	unlock := s.locks.lock(locator.Mailbox)
	defer unlock()

	if _, err := c.Select(locator.Mailbox, true); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var statusErr *goimap.ErrStatusResp
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("imap.Fetch: %w: examine %s: %w", domain.ErrAttachmentDownloadFailed, locator.Mailbox, err)
		}
		return nil, &StoreUnavailableError{Addr: s.addr, Op: "examine " + locator.Mailbox, Err: err}
	}

	data, err := s.fetchPart(c, locator.UID, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("imap.Fetch: %w: %s: %w", domain.ErrAttachmentDownloadFailed, locator, err)
	}
	if len(data) == 0 {
		s.logger.Warn("imap.Fetch: empty attachment part", zap.String("locator", locator.String()))
		return nil, nil
	}

	s.logger.Debug("imap.Fetch: attachment downloaded",
		zap.String("locator", locator.String()),
		zap.Int("bytes", len(data)),
	)
	return data, nil
}

// Ping dials and logs in without selecting a mailbox.
func (s *Store) Ping(ctx context.Context) error {
	c, err := s.connect(ctx)
	if err != nil {
		return err
	}
	return c.Logout()
}

func (s *Store) connect(ctx context.Context) (*client.Client, error) {
	dialer := &net.Dialer{Timeout: s.dialTimeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	var (
		c   *client.Client
		err error
	)
	if s.tlsConfig != nil {
		c, err = client.DialWithDialerTLS(dialer, s.addr, s.tlsConfig)
	} else {
		c, err = client.DialWithDialer(dialer, s.addr)
	}
	if err != nil {
		return nil, &StoreUnavailableError{Addr: s.addr, Op: "dial", Err: err}
	}
	c.Timeout = s.commandTimeout

	if err := c.Login(s.username, s.password); err != nil {
		_ = c.Logout()
		return nil, &StoreUnavailableError{Addr: s.addr, Op: "login", Err: err}
	}
	return c, nil
}

// fetchPart issues UID FETCH (BODYSTRUCTURE BODY.PEEK[<path>]) and decodes the
// part according to its transfer encoding.
func (s *Store) fetchPart(c *client.Client, uid uint32, path []int) ([]byte, error) {
	seqset := new(goimap.SeqSet)
	seqset.AddNum(uid)

	section := &goimap.BodySectionName{
		BodyPartName: goimap.BodyPartName{Path: path},
		Peek:         true,
	}
	items := []goimap.FetchItem{goimap.FetchBodyStructure, section.FetchItem()}

	messages := make(chan *goimap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	var msg *goimap.Message
	for m := range messages {
		if msg == nil {
			msg = m
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("uid fetch: %w", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("message uid %d not found", uid)
	}

	part := findPart(msg.BodyStructure, path)
	if part == nil {
		return nil, fmt.Errorf("part %s not found", formatPartPath(path))
	}

	literal := msg.GetBody(section)
	if literal == nil {
		return nil, nil
	}
	raw, err := io.ReadAll(literal)
	if err != nil {
		return nil, fmt.Errorf("read part: %w", err)
	}
	return decodeTransferEncoding(raw, part.Encoding)
}

// parsePartPath turns "1.2" into []int{1, 2}.
func parsePartPath(part string) ([]int, error) {
	part = strings.TrimSpace(part)
	if part == "" {
		return nil, errors.New("empty part path")
	}
	fields := strings.Split(part, ".")
	path := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid part path %q", part)
		}
		path[i] = n
	}
	return path, nil
}

func formatPartPath(path []int) string {
	parts := make([]string, len(path))
	for i, n := range path {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// findPart walks a BODYSTRUCTURE to the part at path. A non-multipart message
// has a single part addressed as "1".
func findPart(bs *goimap.BodyStructure, path []int) *goimap.BodyStructure {
	if bs == nil || len(path) == 0 {
		return nil
	}
	if len(bs.Parts) == 0 {
		if len(path) == 1 && path[0] == 1 {
			return bs
		}
		return nil
	}
	cur := bs
	for _, n := range path {
		if n < 1 || n > len(cur.Parts) {
			return nil
		}
		cur = cur.Parts[n-1]
	}
	return cur
}

func decodeTransferEncoding(raw []byte, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		out, err := io.ReadAll(base64.NewDecoder(base64.StdEncoding, bytes.NewReader(bytes.TrimSpace(raw))))
		if err != nil {
			return nil, fmt.Errorf("decode base64: %w", err)
		}
		return out, nil
	case "quoted-printable":
		out, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(raw)))
		if err != nil {
			return nil, fmt.Errorf("decode quoted-printable: %w", err)
		}
		return out, nil
	default:
		return raw, nil
	}
}

// mailboxLocks serializes access per mailbox name within this process.
type mailboxLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMailboxLocks() *mailboxLocks {
	return &mailboxLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *mailboxLocks) lock(name string) func() {
	l.mu.Lock()
	m, ok := l.locks[name]
	if !ok {
		m = &sync.Mutex{}
		l.locks[name] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
