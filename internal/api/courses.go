package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/djangify/storefront/internal/domain"
)

// Course enrollment and lesson progress belong to the signed-in user, so
// these ride the authenticated client and its refresh protocol.

func (a *AuthClient) FetchEnrollments(ctx context.Context) ([]domain.CourseEnrollment, error) {
	var enrollments []domain.CourseEnrollment
	return enrollments, a.sendJSON(ctx, http.MethodGet, "/courses/enrollments/", nil, &enrollments)
}

func (a *AuthClient) EnrollInCourse(ctx context.Context, courseID int64) (*domain.CourseEnrollment, error) {
	var enrollment domain.CourseEnrollment
	path := fmt.Sprintf("/courses/%d/enroll/", courseID)
	if err := a.sendJSON(ctx, http.MethodPost, path, nil, &enrollment); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (a *AuthClient) FetchLessonProgress(ctx context.Context, enrollmentID int64) ([]domain.LessonProgress, error) {
	var progress []domain.LessonProgress
	path := fmt.Sprintf("/courses/enrollments/%d/progress/", enrollmentID)
	return progress, a.sendJSON(ctx, http.MethodGet, path, nil, &progress)
}

func (a *AuthClient) UpdateLessonProgress(ctx context.Context, lessonID int64, completed bool) (*domain.LessonProgress, error) {
	var progress domain.LessonProgress
	path := fmt.Sprintf("/courses/lessons/%d/progress/", lessonID)
	body := map[string]bool{"completed": completed}
	if err := a.sendJSON(ctx, http.MethodPost, path, body, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

// sendJSON sends an authenticated request and decodes a 2xx body into out.
func (a *AuthClient) sendJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := a.Send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return DecodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
