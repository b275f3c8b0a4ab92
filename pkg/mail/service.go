package mail

import (
	"context"
	"errors"
	"fmt"
	"github.com/Geniuskaa/buenafe_registration/internal/config"
	"github.com/Geniuskaa/buenafe_registration/pkg/registration"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
	"io"
	"net"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	ErrNoMailboxes    = errors.New("no mailbox configured")
	errWithMsgReading = errors.New("one or more letters could not be read")
	errNotAListLetter = errors.New("letter is not a registration list")
	errSeenLetter     = errors.New("letter already processed")
	errNoAttachment   = errors.New("letter has no xlsx attachment")
)

const (
	SUBJ_REGEX  = `(?i)lista\s+de\s+buena\s+fe`
	DATE_LAYOUT = "02-01-2006 15:04"
)

var (
	subjRegex    = regexp.MustCompile(SUBJ_REGEX)
	addressRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+`)
)

// Importer stores the players found in an attachment.
type Importer interface {
	BulkImport(ctx context.Context, players []registration.Player) (int, error)
}

// ParseFunc turns an xlsx attachment into players.
type ParseFunc func(r io.Reader) ([]registration.Player, error)

type Service struct {
	mailboxes              []*connectionCredentials
	countOfMailsPerRequest atomic.Uint32
	logger                 *zap.Logger
	importer               Importer
	parse                  ParseFunc
	sender                 feedbackSender
	mu                     sync.Mutex
}

type connectionCredentials struct {
	hostname      string
	port          string
	smtpPort      string
	username      string
	password      string
	previousMails map[seenLetter]struct{}
}

type seenLetter struct {
	date string
	from string
}

// Report sums up one CheckMails run.
type Report struct {
	Letters  int `json:"letters"`
	Imported int `json:"imported"`
	Failed   int `json:"failed"`
}

func NewService(conf *config.Entity, logger *zap.Logger, importer Importer, parse ParseFunc) *Service {
	mailBoxes := make([]*connectionCredentials, len(conf.Mail.Hostname))

	for i := range conf.Mail.Hostname {
		mailBoxes[i] = &connectionCredentials{
			hostname:      conf.Mail.Hostname[i],
			port:          conf.Mail.Port,
			smtpPort:      conf.Mail.SmtpPort,
			username:      conf.Mail.Username[i],
			password:      conf.Mail.Password[i],
			previousMails: make(map[seenLetter]struct{}, 100),
		}
	}

	s := &Service{mailboxes: mailBoxes, logger: logger, importer: importer, parse: parse, sender: smtpSender{}}
	s.countOfMailsPerRequest.Store(conf.Mail.CountOfMails)
	return s
}

func (s *Service) Enabled() bool {
	return len(s.mailboxes) > 0
}

// ChangeCountOfMailsPerReq is called when the config file changes.
func (s *Service) ChangeCountOfMailsPerReq(count uint32) {
	s.countOfMailsPerRequest.Store(count)
}

// CheckMails reads the latest letters of every mailbox, one mailbox after the other. Runs are serialized so a
// letter can not be imported twice by two concurrent requests.
func (s *Service) CheckMails(ctx context.Context) (Report, error) {
	if !s.Enabled() {
		return Report{}, ErrNoMailboxes
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		report Report
		errs   []error
	)

	for _, box := range s.mailboxes {
		r, err := s.readLetters(ctx, box, s.countOfMailsPerRequest.Load())
		report.Letters += r.Letters
		report.Imported += r.Imported
		report.Failed += r.Failed

		if err != nil {
			s.logger.Error("Unfortunately, we were unable to read mails", zap.String("mail-box", box.username),
				zap.Error(err))
			errs = append(errs, err)
		}
	}

	if len(errs) != 0 {
		return report, fmt.Errorf("CheckMails failed: %w", errors.Join(errs...))
	}

	return report, nil
}

// inbox is the part of the IMAP client the service talks to once logged in.
type inbox interface {
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
}

func (s *Service) readLetters(ctx context.Context, box *connectionCredentials, count uint32) (Report, error) {
	c, err := client.DialTLS(net.JoinHostPort(box.hostname, box.port), nil)
	if err != nil {
		return Report{}, fmt.Errorf("client.DialTLS failed: %w", err)
	}

	defer func() {
		_ = c.Logout()
	}()

	if err := c.Login(box.username, box.password); err != nil {
		return Report{}, fmt.Errorf("c.Login failed: %w", err)
	}

	return s.readInbox(ctx, box, c, count)
}

// readInbox handles the latest unseen letters of INBOX. Registration letters are flagged \Seen once handled,
// so a restarted service does not import them again.
func (s *Service) readInbox(ctx context.Context, box *connectionCredentials, c inbox, count uint32) (Report, error) {
	var report Report

	if _, err := c.Select("INBOX", false); err != nil {
		return report, fmt.Errorf("c.Select failed: %w", err)
	}

	if count == 0 {
		return report, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return report, fmt.Errorf("c.UidSearch failed: %w", err)
	}
	if len(uids) == 0 {
		return report, nil
	}
	if uint32(len(uids)) > count {
		uids = uids[uint32(len(uids))-count:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	countOfErrs := 0
	handled := new(imap.SeqSet)

	for msg := range messages {
		r := msg.GetBody(section)
		if r == nil {
			s.logger.Error("Server didn't return message body", zap.Uint32("uid", msg.Uid))
			countOfErrs++
			continue
		}

		imported, err := s.processLetter(ctx, box, r)
		switch {
		case err == nil:
			report.Letters++
			report.Imported += imported
			handled.AddNum(msg.Uid)
		case errors.Is(err, errSeenLetter):
			handled.AddNum(msg.Uid)
		case errors.Is(err, errNotAListLetter):
		case errors.Is(err, errNoAttachment):
			s.logger.Warn("Letter skipped", zap.Uint32("uid", msg.Uid), zap.Error(err))
		default:
			report.Letters++
			report.Failed++
			handled.AddNum(msg.Uid)
			s.logger.Error("Letter processing failed", zap.Uint32("uid", msg.Uid), zap.Error(err))
		}
	}

	if err := <-done; err != nil {
		return report, fmt.Errorf("c.UidFetch failed: %w", err)
	}

	if !handled.Empty() {
		err := c.UidStore(handled, imap.FormatFlagsOp(imap.AddFlags, true), []interface{}{imap.SeenFlag}, nil)
		if err != nil {
			return report, fmt.Errorf("c.UidStore failed: %w", err)
		}
	}

	if countOfErrs != 0 {
		return report, fmt.Errorf("%d letters unreadable: %w", countOfErrs, errWithMsgReading)
	}

	return report, nil
}

// processLetter imports the first xlsx attachment of a registration letter and answers the sender.
// It returns how many players were stored.
func (s *Service) processLetter(ctx context.Context, box *connectionCredentials, r io.Reader) (int, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return 0, fmt.Errorf("mail.CreateReader failed: %w", err)
	}
	defer mr.Close()

	header := mr.Header

	subject, err := header.Subject()
	if err != nil {
		return 0, fmt.Errorf("header.Subject failed: %w", err)
	}
	if !subjRegex.MatchString(subject) {
		return 0, errNotAListLetter
	}

	dateOfMsg, err := header.Date()
	if err != nil {
		return 0, fmt.Errorf("header.Date failed: %w", err)
	}

	fromList, err := header.AddressList("From")
	if err != nil || len(fromList) == 0 {
		return 0, fmt.Errorf("header.AddressList failed: %w", errors.Join(err, errWithMsgReading))
	}
	sender := strings.ToLower(addressRegex.FindString(fromList[0].Address))

	letter := seenLetter{date: dateOfMsg.UTC().Format(DATE_LAYOUT), from: sender}
	if _, found := box.previousMails[letter]; found {
		return 0, errSeenLetter
	}

	logger := s.logger.With(zap.String("from", sender), zap.String("sent", letter.date),
		zap.String("mail-box", box.username))

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return 0, fmt.Errorf("mr.NextPart failed: %w", err)
		}

		h, ok := p.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}

		filename, err := h.Filename()
		if err != nil {
			logger.Warn("Attachment without usable filename", zap.Error(err))
			continue
		}
		if !strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
			continue
		}

		// Only one file per letter is processed, whatever the outcome.
		box.previousMails[letter] = struct{}{}

		feedback := Feedback{Subject: subject, FileName: filename}
		imported, importErr := s.importAttachment(ctx, p.Body, &feedback)
		if importErr != nil {
			logger.Error("Attachment import failed", zap.String("file", filename), zap.Error(importErr))
		} else {
			logger.Info("Attachment imported", zap.String("file", filename), zap.Int("players", imported))
		}

		if err := s.sender.send(box, sender, feedback); err != nil {
			logger.Error("responseToLetter failed", zap.Error(err))
		}

		return imported, importErr
	}

	return 0, errNoAttachment
}

func (s *Service) importAttachment(ctx context.Context, body io.Reader, feedback *Feedback) (int, error) {
	players, err := s.parse(body)
	if err != nil {
		feedback.Err = err.Error()
		return 0, fmt.Errorf("parse failed: %w", err)
	}

	imported, err := s.importer.BulkImport(ctx, players)
	feedback.Imported = imported
	feedback.AddedPlayers = make([]string, 0, imported)
	for _, p := range players[:imported] {
		feedback.AddedPlayers = append(feedback.AddedPlayers, p.FullName)
	}

	if err != nil {
		feedback.Err = err.Error()
		return imported, fmt.Errorf("BulkImport failed: %w", err)
	}

	return imported, nil
}
