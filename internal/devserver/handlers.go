package devserver

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/forPelevin/tredit/internal/domain/export"
	"github.com/forPelevin/tredit/internal/domain/segments"
	"github.com/forPelevin/tredit/internal/types"
)

const errNoTranscription = "No transcription available"

func (s *Server) transcribe(c *fiber.Ctx) error {
	sourceURL := strings.TrimSpace(c.FormValue("youtube_url"))
	prompt := strings.TrimSpace(c.FormValue("prompt"))
	if _, ok := segments.SourceID(sourceURL); !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid YouTube URL. Please enter a valid YouTube video link.")
	}

	tr, duration, err := s.t.Transcribe(c.UserContext(), sourceURL, prompt)
	if err != nil {
		s.entry(c).WithError(err).Error("transcription failed")
		return fail(c, fiber.StatusInternalServerError, "An error occurred while processing the video: "+err.Error())
	}
	if s.max > 0 && duration > s.max.Seconds() {
		return fail(c, fiber.StatusBadRequest, fmt.Sprintf("Video is too long (%.0fs); the limit is %s.", duration, s.max))
	}

	for i := range tr.Segments {
		tr.Segments[i].Text = strings.TrimSpace(tr.Segments[i].Text)
	}
	tr.Text = segments.JoinTrimmed(tr.Segments)
	tr.IsSorted = segments.IsSorted(tr.Segments)

	sess := s.session(c)
	sess.mu.Lock()
	sess.tr = &tr
	sess.sourceURL, sess.prompt = sourceURL, prompt
	out := tr.Clone()
	sess.mu.Unlock()

	s.entry(c).WithField("segments", len(out.Segments)).Info("transcription stored")
	return c.JSON(out)
}

func (s *Server) cachedTranscription(c *fiber.Ctx) error {
	sess := s.session(c)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.tr == nil {
		return fail(c, fiber.StatusNotFound, "No cached transcription available")
	}
	tr := sess.tr.Clone()
	tr.IsSorted = segments.IsSorted(tr.Segments)
	return c.JSON(types.CachedSession{Transcription: &tr, SourceURL: sess.sourceURL, Prompt: sess.prompt})
}

func (s *Server) updateSegment(c *fiber.Ctx) error {
	var req types.UpdateSegmentRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	sess := s.session(c)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.tr == nil {
		return fail(c, fiber.StatusBadRequest, errNoTranscription)
	}
	if req.Index >= len(sess.tr.Segments) {
		return fail(c, fiber.StatusBadRequest, indexError(req.Index, len(sess.tr.Segments)))
	}
	sess.tr.Segments[req.Index] = types.Segment{Start: req.Start, End: req.End, Text: strings.TrimSpace(req.Text)}
	sess.tr.Text = segments.JoinTrimmed(sess.tr.Segments)
	return c.JSON(types.Envelope{Success: true})
}

func (s *Server) addSegment(c *fiber.Ctx) error {
	var req types.AddSegmentRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	sess := s.session(c)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.tr == nil {
		return fail(c, fiber.StatusBadRequest, errNoTranscription)
	}
	pos := segments.InsertPosition(len(sess.tr.Segments), req.SelectedIndex)
	sess.tr.Segments = segments.Insert(sess.tr.Segments, pos, types.Segment{Start: req.Start, End: req.End, Text: req.Text})
	sess.tr.Text = segments.JoinTrimmed(sess.tr.Segments)
	sorted := segments.IsSorted(sess.tr.Segments)
	sess.tr.IsSorted = sorted
	return replaced(c, sess.tr, &sorted)
}

func (s *Server) removeSegment(c *fiber.Ctx) error {
	var req types.RemoveSegmentRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	sess := s.session(c)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.tr == nil {
		return fail(c, fiber.StatusBadRequest, errNoTranscription)
	}
	if req.Index >= len(sess.tr.Segments) {
		return fail(c, fiber.StatusBadRequest, indexError(req.Index, len(sess.tr.Segments)))
	}
	sess.tr.Segments = segments.Remove(sess.tr.Segments, req.Index)
	sess.tr.Text = segments.JoinTrimmed(sess.tr.Segments)
	sess.tr.IsSorted = segments.IsSorted(sess.tr.Segments)
	return replaced(c, sess.tr, nil)
}

func (s *Server) sortSegments(c *fiber.Ctx) error {
	sess := s.session(c)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.tr == nil {
		return fail(c, fiber.StatusBadRequest, errNoTranscription)
	}
	segments.SortByStart(sess.tr.Segments)
	sess.tr.Text = segments.JoinTrimmed(sess.tr.Segments)
	sess.tr.IsSorted = true
	return replaced(c, sess.tr, nil)
}

func (s *Server) retranscribeSegment(c *fiber.Ctx) error {
	var req types.RetranscribeRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	sess := s.session(c)
	sess.mu.Lock()
	if sess.tr == nil {
		sess.mu.Unlock()
		return fail(c, fiber.StatusBadRequest, errNoTranscription)
	}
	if req.Index >= len(sess.tr.Segments) {
		n := len(sess.tr.Segments)
		sess.mu.Unlock()
		return fail(c, fiber.StatusBadRequest, indexError(req.Index, n))
	}
	seg := sess.tr.Segments[req.Index]
	sourceURL := sess.sourceURL
	sess.mu.Unlock()

	// The session stays usable while the range is transcribed.
	out, err := s.t.TranscribeRange(c.UserContext(), sourceURL, seg.Start, seg.End, req.Prompt)
	if err != nil {
		s.entry(c).WithError(err).WithField("index", req.Index).Error("re-transcription failed")
		return fail(c, fiber.StatusInternalServerError, "An error occurred while re-transcribing the segment: "+err.Error())
	}
	out.Text = strings.TrimSpace(out.Text)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.tr == nil || req.Index >= len(sess.tr.Segments) {
		return fail(c, fiber.StatusConflict, "Segment list changed during re-transcription")
	}
	sess.tr.Segments[req.Index] = out
	sess.tr.Text = segments.JoinTrimmed(sess.tr.Segments)
	return c.JSON(types.Envelope{Success: true, Segment: &out})
}

func (s *Server) download(f types.Format) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess := s.session(c)
		sess.mu.Lock()
		if sess.tr == nil {
			sess.mu.Unlock()
			return fail(c, fiber.StatusBadRequest, errNoTranscription)
		}
		tr := sess.tr.Clone()
		sess.mu.Unlock()

		b, err := export.Render(tr, f)
		if err != nil {
			return err
		}
		ct := fiber.MIMETextPlainCharsetUTF8
		if f == types.FormatCSV {
			ct = "text/csv; charset=utf-8"
		}
		c.Attachment(f.Filename())
		c.Set(fiber.HeaderContentType, ct)
		return c.Send(b)
	}
}

// bind parses a JSON body into dst and validates it. Its errors are
// rendered by the app's error handler.
func (s *Server) bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if err := s.v.Struct(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, strings.Join(validationMessages(err), "; "))
	}
	return nil
}

func (s *Server) entry(c *fiber.Ctx) *logrus.Entry {
	id, _ := c.Locals("request_id").(string)
	return s.log.WithFields(logrus.Fields{"request_id": id, "uri": c.Path()})
}

func replaced(c *fiber.Ctx, tr *types.Transcription, sorted *bool) error {
	out := tr.Clone()
	return c.JSON(types.Envelope{Success: true, Transcription: &out, IsSorted: sorted})
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(types.Envelope{Success: false, Error: msg})
}

func indexError(i, n int) string {
	return fmt.Sprintf("Segment index %d out of range (have %d)", i, n)
}

func validationMessages(err error) []string {
	ves, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(ves))
	for _, fe := range ves {
		msg := fmt.Sprintf("field '%s' failed on '%s'", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			msg += " (" + fe.Param() + ")"
		}
		out = append(out, msg)
	}
	return out
}
