// README: Driver service: profile upkeep, document uploads via signed URLs, admin verification and the bookable list.
package driver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"ridebook/internal/logging"
	"ridebook/internal/modules/availability"
	"ridebook/internal/types"
)

var (
	ErrNotFound               = errors.New("driver profile not found")
	ErrInvalidPhone           = errors.New("phone must have 10-15 digits with an optional + prefix")
	ErrInvalidGender          = errors.New("only female drivers can register")
	ErrUnknownDocument        = errors.New("unknown document type")
	ErrUnsupportedContentType = errors.New("document must be a JPEG, PNG or PDF file")
	ErrFileTooLarge           = errors.New("document must be smaller than 10MB")
	ErrInvalidPath            = errors.New("document path does not belong to this driver")
	ErrDocumentMissing        = errors.New("document not uploaded")
	ErrNotVerified            = errors.New("driver is not verified")
)

type ProfileStore interface {
	Get(ctx context.Context, userID types.ID) (*Profile, error)
	Upsert(ctx context.Context, userID types.ID, email, phone, gender string) error
	SetDocument(ctx context.Context, userID types.ID, doc DocumentType, path string) error
	ClearDocument(ctx context.Context, userID types.ID, doc DocumentType) ([]string, error)
	List(ctx context.Context, verifiedOnly bool) ([]*Profile, error)
	SetVerified(ctx context.Context, userID types.ID, verified bool) error
}

// Signer is implemented by *infra.GCSSigner.
type Signer interface {
	SignedGetURL(ctx context.Context, path string) (string, error)
	SignedPutURL(ctx context.Context, path, contentType string) (string, error)
	Delete(ctx context.Context, path string) error
}

type AvailabilityLister interface {
	ListByDrivers(ctx context.Context, driverIDs []types.ID) ([]availability.Availability, error)
}

type Service struct {
	store     ProfileStore
	signer    Signer
	avail     AvailabilityLister
	signedTTL time.Duration
	validate  *validator.Validate
	log       *logging.Logger
	now       func() time.Time
}

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{9,14}$`)

func NewService(store ProfileStore, signer Signer, avail AvailabilityLister, signedTTL time.Duration, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	if signedTTL <= 0 {
		signedTTL = time.Hour
	}
	v := validator.New()
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("driver: register phone validation: %v", err))
	}
	return &Service{
		store:     store,
		signer:    signer,
		avail:     avail,
		signedTTL: signedTTL,
		validate:  v,
		log:       log,
		now:       time.Now,
	}
}

type ProfileCommand struct {
	UserID types.ID
	Email  string
	Phone  string `validate:"phone"`
	Gender string `validate:"eq=female"`
}

// NormalizePhone strips spaces, dashes and parentheses.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-', '(', ')':
			return -1
		}
		return r
	}, phone)
}

func (s *Service) UpsertProfile(ctx context.Context, cmd ProfileCommand) (*Profile, error) {
	cmd.Phone = NormalizePhone(cmd.Phone)
	cmd.Gender = strings.ToLower(strings.TrimSpace(cmd.Gender))
	if err := s.validate.Struct(cmd); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "Gender" {
			return nil, ErrInvalidGender
		}
		return nil, ErrInvalidPhone
	}
	if err := s.store.Upsert(ctx, cmd.UserID, cmd.Email, cmd.Phone, cmd.Gender); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, cmd.UserID)
}

func (s *Service) Profile(ctx context.Context, userID types.ID) (*Profile, error) {
	return s.store.Get(ctx, userID)
}

// EnsureVerified fails unless userID has a profile an admin has approved.
func (s *Service) EnsureVerified(ctx context.Context, userID types.ID) error {
	p, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !p.ProfileVerified {
		return fmt.Errorf("%w: %s", ErrNotVerified, userID)
	}
	return nil
}

type UploadCommand struct {
	UserID      types.ID
	Type        DocumentType
	ContentType string
	SizeBytes   int64
}

// UploadURL validates the file metadata and returns where to PUT it.
func (s *Service) UploadURL(ctx context.Context, cmd UploadCommand) (UploadTicket, error) {
	if _, ok := documentColumns[cmd.Type]; !ok {
		return UploadTicket{}, ErrUnknownDocument
	}
	ext, ok := allowedContentTypes[strings.ToLower(cmd.ContentType)]
	if !ok {
		return UploadTicket{}, ErrUnsupportedContentType
	}
	if cmd.SizeBytes <= 0 || cmd.SizeBytes > maxDocumentBytes {
		return UploadTicket{}, ErrFileTooLarge
	}
	if _, err := s.store.Get(ctx, cmd.UserID); err != nil {
		return UploadTicket{}, err
	}

	path := fmt.Sprintf("%s%s.%s", pathPrefix(cmd.UserID, cmd.Type), types.NewID(), ext)
	url, err := s.signer.SignedPutURL(ctx, path, cmd.ContentType)
	if err != nil {
		return UploadTicket{}, fmt.Errorf("sign upload url: %w", err)
	}
	return UploadTicket{URL: url, Path: path, ExpiresAt: s.now().Add(s.signedTTL)}, nil
}

// RecordDocument stores a path previously handed out by UploadURL.
func (s *Service) RecordDocument(ctx context.Context, userID types.ID, doc DocumentType, path string) (*Profile, error) {
	if _, ok := documentColumns[doc]; !ok {
		return nil, ErrUnknownDocument
	}
	if !strings.HasPrefix(path, pathPrefix(userID, doc)) || strings.Contains(path, "..") {
		return nil, ErrInvalidPath
	}
	if err := s.store.SetDocument(ctx, userID, doc, path); err != nil {
		return nil, err
	}
	s.log.WithDriver(userID).WithField("document", string(doc)).Info("document recorded")
	return s.store.Get(ctx, userID)
}

// RemoveDocument clears the document; deleting the stored objects is best effort.
func (s *Service) RemoveDocument(ctx context.Context, userID types.ID, doc DocumentType) (*Profile, error) {
	paths, err := s.store.ClearDocument(ctx, userID, doc)
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		if err := s.signer.Delete(ctx, p); err != nil {
			s.log.WithDriver(userID).WithError(err).WithField("path", p).Warn("delete document object failed")
		}
	}
	return s.store.Get(ctx, userID)
}

// DocumentURLs returns short-lived view URLs for a document.
func (s *Service) DocumentURLs(ctx context.Context, userID types.ID, doc DocumentType) ([]string, error) {
	if _, ok := documentColumns[doc]; !ok {
		return nil, ErrUnknownDocument
	}
	p, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	paths := p.Documents[doc].Paths
	if len(paths) == 0 {
		return nil, ErrDocumentMissing
	}
	urls := make([]string, 0, len(paths))
	for _, path := range paths {
		u, err := s.signer.SignedGetURL(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("sign view url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, nil
}

func (s *Service) ListDrivers(ctx context.Context) ([]*Profile, error) {
	return s.store.List(ctx, false)
}

func (s *Service) Approve(ctx context.Context, userID, adminID types.ID) error {
	if err := s.store.SetVerified(ctx, userID, true); err != nil {
		return err
	}
	s.log.WithDriver(userID).WithField("admin_id", string(adminID)).Info("driver approved")
	return nil
}

func (s *Service) Reject(ctx context.Context, userID, adminID types.ID) error {
	if err := s.store.SetVerified(ctx, userID, false); err != nil {
		return err
	}
	s.log.WithDriver(userID).WithField("admin_id", string(adminID)).Info("driver rejected")
	return nil
}

// ListBookable returns verified drivers with their current availability.
// Drivers without an availability row count as available.
func (s *Service) ListBookable(ctx context.Context) ([]BookableDriver, error) {
	profiles, err := s.store.List(ctx, true)
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(profiles))
	for i, p := range profiles {
		ids[i] = p.UserID
	}
	avail, err := s.avail.ListByDrivers(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[types.ID]availability.Availability, len(avail))
	for _, a := range avail {
		byID[a.DriverID] = a
	}

	out := make([]BookableDriver, 0, len(profiles))
	for _, p := range profiles {
		a, ok := byID[p.UserID]
		if !ok {
			a = availability.Default(p.UserID)
		}
		out = append(out, BookableDriver{
			UserID:        p.UserID,
			Email:         p.Email,
			Phone:         p.Phone,
			IsAvailable:   a.IsAvailable,
			CurrentRideID: a.CurrentRideID,
		})
	}
	return out, nil
}

func pathPrefix(userID types.ID, doc DocumentType) string {
	return fmt.Sprintf("drivers/%s/%s/", userID, doc)
}
