package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/models"
)

const mimeBoundary = "lesson-boundary-7f3a"

type Emailer interface {
	Send(to, subject, additionalHeaders, body string) error
}

// Service renders lesson content into HTML and plain-text bodies and
// hands them to the transport with list-unsubscribe headers set.
type Service struct {
	emailer      Emailer
	templatesDir string
}

func NewService(emailer Emailer, templatesDir string) *Service {
	return &Service{
		emailer:      emailer,
		templatesDir: templatesDir,
	}
}

type lessonEmailData struct {
	Subject        string
	NewInfo        []string
	Review         []string
	Exercise       models.Exercise
	UnsubscribeURL string
	PauseURL       string
}

// Render produces the HTML and text bodies for a lesson.
func (s *Service) Render(
	content models.LessonContent,
	unsubscribeURL, pauseURL string,
) (htmlBody, textBody string, err error) {
	tmpl, err := template.ParseFiles(s.templatesDir + "/lesson_email.html")
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, lessonEmailData{
		Subject:        content.Subject,
		NewInfo:        content.NewInfo,
		Review:         content.Review,
		Exercise:       content.Exercise,
		UnsubscribeURL: unsubscribeURL,
		PauseURL:       pauseURL,
	})
	if err != nil {
		return "", "", err
	}

	return buf.String(), renderText(content, unsubscribeURL, pauseURL), nil
}

func renderText(content models.LessonContent, unsubscribeURL, pauseURL string) string {
	var b strings.Builder

	b.WriteString(content.Subject + "\n\n")
	b.WriteString("Today's lesson:\n")
	for _, item := range content.NewInfo {
		b.WriteString("- " + item + "\n")
	}
	if len(content.Review) > 0 {
		b.WriteString("\nReview:\n")
		for _, item := range content.Review {
			b.WriteString("- " + item + "\n")
		}
	}
	b.WriteString("\nExercise: " + content.Exercise.Prompt + "\n")
	b.WriteString("Answer: " + content.Exercise.ExpectedAnswer + "\n")
	b.WriteString("\nPause lessons: " + pauseURL + "\n")
	b.WriteString("Unsubscribe: " + unsubscribeURL + "\n")

	return b.String()
}

// SendLesson transmits a rendered lesson as multipart/alternative with
// one-click unsubscribe headers.
func (s *Service) SendLesson(
	to, subject, htmlBody, textBody, unsubscribeURL, _ string,
) error {
	headers := "MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"" + mimeBoundary + "\"\r\n" +
		"List-Unsubscribe: <" + unsubscribeURL + ">\r\n" +
		"List-Unsubscribe-Post: List-Unsubscribe=One-Click"

	body := fmt.Sprintf(
		"--%s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s\r\n"+
			"--%s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s\r\n"+
			"--%s--\r\n",
		mimeBoundary, textBody, mimeBoundary, htmlBody, mimeBoundary,
	)

	return s.emailer.Send(to, subject, headers, body)
}
