package server

import (
	"errors"
	"fmt"
	"github.com/Geniuskaa/buenafe_registration/pkg/auth"
	"github.com/Geniuskaa/buenafe_registration/pkg/mail"
	"github.com/Geniuskaa/buenafe_registration/pkg/parser"
	"github.com/Geniuskaa/buenafe_registration/pkg/registration"
	"github.com/Geniuskaa/buenafe_registration/pkg/storage"
	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Photo fields of the inscription form.
const (
	DNI_PLAYER_FILE = "dniPlayerFile"
	DNI_SOCIO_FILE  = "dniSocioFile"
	IMPORT_FILE     = "file"
)

type loginRequest struct {
	Password string `json:"password"`
}

// flexString accepts strings, numbers and null: spreadsheets converted on the client side often turn
// dni or jersey number into numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	switch {
	case raw == "null":
		*f = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := sonic.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		*f = flexString(raw)
	}
	return nil
}

type bulkPlayer struct {
	FullName     flexString `json:"fullName"`
	Dni          flexString `json:"dni"`
	Phone        flexString `json:"phone"`
	Email        flexString `json:"email"`
	PlayerType   flexString `json:"playerType"`
	TeamName     flexString `json:"teamName"`
	Category     flexString `json:"category"`
	JerseyNumber flexString `json:"jerseyNumber"`
	SocioName    flexString `json:"socioName"`
	SocioDni     flexString `json:"socioDni"`
	SocioPhone   flexString `json:"socioPhone"`
}

type bulkRequest struct {
	Players *[]bulkPlayer `json:"players"`
}

func (b bulkPlayer) toPlayer() registration.Player {
	return registration.Player{
		FullName:     string(b.FullName),
		Dni:          string(b.Dni),
		Phone:        string(b.Phone),
		Email:        string(b.Email),
		PlayerType:   string(b.PlayerType),
		TeamName:     string(b.TeamName),
		Category:     string(b.Category),
		JerseyNumber: string(b.JerseyNumber),
		SocioName:    registration.NullIfEmpty(string(b.SocioName)),
		SocioDni:     registration.NullIfEmpty(string(b.SocioDni)),
		SocioPhone:   registration.NullIfEmpty(string(b.SocioPhone)),
	}
}

func filterFromQuery(r *http.Request) registration.Filter {
	q := r.URL.Query()
	return registration.Filter{
		Text:     strings.TrimSpace(q.Get("q")),
		Category: strings.TrimSpace(q.Get("category")),
		Team:     strings.TrimSpace(q.Get("team")),
	}
}

func (s *Server) inscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		s.logger.Warn("Inscription form rejected", zap.Error(err))
		writeFail(w, http.StatusBadRequest, uploadErrMessage(err))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	p := registration.Player{
		FullName:     r.FormValue("fullName"),
		Dni:          r.FormValue("dni"),
		Phone:        r.FormValue("phone"),
		Email:        r.FormValue("email"),
		PlayerType:   r.FormValue("playerType"),
		TeamName:     r.FormValue("teamName"),
		Category:     r.FormValue("category"),
		JerseyNumber: r.FormValue("jerseyNumber"),
		SocioName:    registration.NullIfEmpty(r.FormValue("socioName")),
		SocioDni:     registration.NullIfEmpty(r.FormValue("socioDni")),
		SocioPhone:   registration.NullIfEmpty(r.FormValue("socioPhone")),
	}

	if p.NeedsGuarantor() && p.SocioName == nil {
		s.logger.Warn("Inscription without guarantor member", zap.String("dni", p.Dni),
			zap.String("playerType", p.PlayerType))
	}

	var err error
	if p.DniPlayerPath, err = s.savePhoto(r.MultipartForm, DNI_PLAYER_FILE); err != nil {
		s.photoFailed(w, err)
		return
	}
	if p.DniSocioPath, err = s.savePhoto(r.MultipartForm, DNI_SOCIO_FILE); err != nil {
		s.discardPhotos(p.DniPlayerPath)
		s.photoFailed(w, err)
		return
	}

	id, err := s.registration.Register(ctx, p)
	if err != nil {
		s.discardPhotos(p.DniPlayerPath, p.DniSocioPath)
		s.logger.Error("Inscription failed", zap.Error(err))
		writeFail(w, http.StatusInternalServerError, MSG_INTERNAL)
		return
	}
	s.metrics.registered(SOURCE_FORM, 1)

	writeJSON(w, http.StatusOK, inscriptionResponse{Success: true, Message: MSG_INSCRIPTION_OK, ID: id})
}

// savePhoto stores the optional file of the field and returns its public path, nil when absent.
func (s *Server) savePhoto(form *multipart.Form, field string) (*string, error) {
	files := form.File[field]
	if len(files) == 0 {
		return nil, nil
	}

	path, err := s.storage.Save(field, files[0])
	if err != nil {
		return nil, err
	}
	return &path, nil
}

// discardPhotos removes files saved for an inscription that was not stored.
func (s *Server) discardPhotos(paths ...*string) {
	for _, p := range paths {
		if p == nil {
			continue
		}
		if err := s.storage.Remove(*p); err != nil {
			s.logger.Warn("Orphan photo left on disk", zap.String("path", *p), zap.Error(err))
		}
	}
}

func (s *Server) photoFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrUnsupportedFormat) {
		writeFail(w, http.StatusBadRequest, MSG_BAD_IMAGE)
		return
	}
	s.logger.Error("Photo storing failed", zap.Error(err))
	writeFail(w, http.StatusInternalServerError, MSG_INTERNAL)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, MSG_INVALID_DATA)
		return
	}

	token, err := s.auth.Login(req.Password)
	if errors.Is(err, auth.ErrWrongPassword) {
		s.logger.Warn("Admin login rejected", zap.String("remote", r.RemoteAddr))
		writeFail(w, http.StatusUnauthorized, MSG_WRONG_PASSWORD)
		return
	} else if err != nil {
		s.logger.Error("Admin login failed", zap.Error(err))
		writeFail(w, http.StatusInternalServerError, MSG_INTERNAL)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Success: true, Token: token})
}

func (s *Server) listPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.registration.List(r.Context(), filterFromQuery(r))
	if err != nil {
		s.logger.Error("Players listing failed", zap.Error(err))
		writeFail(w, http.StatusInternalServerError, MSG_INTERNAL)
		return
	}

	writeJSON(w, http.StatusOK, players)
}

func (s *Server) bulkPlayers(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil || req.Players == nil {
		writeFail(w, http.StatusBadRequest, MSG_INVALID_DATA)
		return
	}

	players := make([]registration.Player, 0, len(*req.Players))
	for _, p := range *req.Players {
		players = append(players, p.toPlayer())
	}

	count, err := s.registration.BulkImport(r.Context(), players)
	s.metrics.registered(SOURCE_BULK, count)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, importResponse{Message: MSG_BULK_FAILED, Count: count})
		return
	}

	writeJSON(w, http.StatusOK, importResponse{Success: true, Message: fmt.Sprintf(MSG_BULK_OK, count), Count: count})
}

func (s *Server) importPlayers(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		writeFail(w, http.StatusBadRequest, uploadErrMessage(err))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, _, err := r.FormFile(IMPORT_FILE)
	if err != nil {
		writeFail(w, http.StatusBadRequest, MSG_INVALID_DATA)
		return
	}
	defer file.Close()

	players, err := parser.ParseXlsx(file)
	if err != nil {
		s.logger.Warn("Workbook rejected", zap.Error(err))
		writeFail(w, http.StatusBadRequest, MSG_BAD_WORKBOOK)
		return
	}

	count, err := s.registration.BulkImport(r.Context(), players)
	s.metrics.registered(SOURCE_IMPORT, count)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, importResponse{Message: MSG_BULK_FAILED, Count: count})
		return
	}

	writeJSON(w, http.StatusOK, importResponse{Success: true, Message: fmt.Sprintf(MSG_BULK_OK, count), Count: count})
}

func (s *Server) exportPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.registration.List(r.Context(), filterFromQuery(r))
	if err != nil {
		s.logger.Error("Players listing failed", zap.Error(err))
		writeFail(w, http.StatusInternalServerError, MSG_INTERNAL)
		return
	}

	if len(players) == 0 {
		writeFail(w, http.StatusNotFound, MSG_EMPTY_LIST)
		return
	}

	buf, err := parser.BuildWorkbook(players)
	if err != nil {
		s.logger.Error("Workbook export failed", zap.Error(err))
		writeFail(w, http.StatusInternalServerError, MSG_INTERNAL)
		return
	}

	w.Header().Set("Content-Type", XLSX_CONTENT_TYPE)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", parser.ExportFileName(time.Now())))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) deletePlayer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeFail(w, http.StatusBadRequest, MSG_INVALID_ID)
		return
	}

	if err := s.registration.Delete(r.Context(), id); err != nil {
		s.logger.Error("Player deletion failed", zap.Int64("id", id), zap.Error(err))
		writeFail(w, http.StatusInternalServerError, MSG_INTERNAL)
		return
	}

	writeMessage(w, http.StatusOK, true, MSG_DELETED)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	snap, err := s.registration.Stats(r.Context())
	if err != nil {
		s.logger.Error("Stats failed", zap.Error(err))
		writeFail(w, http.StatusInternalServerError, MSG_STATS_FAILED)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) checkMail(w http.ResponseWriter, r *http.Request) {
	report, err := s.mail.CheckMails(r.Context())
	s.metrics.registered(SOURCE_MAIL, report.Imported)

	if errors.Is(err, mail.ErrNoMailboxes) {
		writeFail(w, http.StatusNotFound, MSG_NO_MAILBOXES)
		return
	} else if err != nil {
		writeFail(w, http.StatusInternalServerError, MSG_MAIL_FAILED)
		return
	}

	writeJSON(w, http.StatusOK, mailCheckResponse{
		Success:  true,
		Letters:  report.Letters,
		Imported: report.Imported,
		Failed:   report.Failed,
	})
}

func (s *Server) maxUploadBytes() int64 {
	return s.cfg.Upload.MaxSizeMB << 20
}

func uploadErrMessage(err error) string {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return MSG_FILE_TOO_LARGE
	}
	return MSG_INVALID_DATA
}
