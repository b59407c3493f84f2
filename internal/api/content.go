package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/djangify/storefront/internal/domain"
)

// Thin typed wrappers over the content endpoints. No state, no retries.

func (c *Client) FetchPosts(ctx context.Context) ([]domain.BlogPost, error) {
	var posts []domain.BlogPost
	return posts, c.GetJSON(ctx, "/blog/posts/", "", &posts)
}

func (c *Client) FetchPost(ctx context.Context, slug string) (*domain.BlogPost, error) {
	var post domain.BlogPost
	if err := c.GetJSON(ctx, fmt.Sprintf("/blog/posts/%s/", slug), "", &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) FetchPages(ctx context.Context) ([]domain.Page, error) {
	var pages []domain.Page
	return pages, c.GetJSON(ctx, "/pages/", "", &pages)
}

func (c *Client) FetchPage(ctx context.Context, slug string) (*domain.Page, error) {
	var page domain.Page
	if err := c.GetJSON(ctx, fmt.Sprintf("/pages/%s/", slug), "", &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) FetchLinkHubs(ctx context.Context) ([]domain.LinkHub, error) {
	var hubs []domain.LinkHub
	return hubs, c.GetJSON(ctx, "/linkhubs/", "", &hubs)
}

func (c *Client) FetchLinkHub(ctx context.Context, slug string) (*domain.LinkHub, error) {
	var hub domain.LinkHub
	if err := c.GetJSON(ctx, fmt.Sprintf("/linkhubs/%s/", slug), "", &hub); err != nil {
		return nil, err
	}
	return &hub, nil
}

func (c *Client) FetchTestimonials(ctx context.Context) ([]domain.Testimonial, error) {
	var ts []domain.Testimonial
	return ts, c.GetJSON(ctx, "/testimonials/", "", &ts)
}

func (c *Client) FetchCourses(ctx context.Context) ([]domain.Course, error) {
	var courses []domain.Course
	return courses, c.GetJSON(ctx, "/courses/", "", &courses)
}

func (c *Client) FetchCourse(ctx context.Context, slug string) (*domain.Course, error) {
	var course domain.Course
	if err := c.GetJSON(ctx, fmt.Sprintf("/courses/%s/", slug), "", &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// Appointment booking rides public endpoints; no bearer involved.

func (c *Client) FetchCalendarUser(ctx context.Context, username string) (*domain.CalendarUser, error) {
	var cal domain.CalendarUser
	if err := c.GetJSON(ctx, fmt.Sprintf("/appointments-booking/api/public/%s/", username), "", &cal); err != nil {
		return nil, err
	}
	return &cal, nil
}

func (c *Client) FetchAvailableSlots(ctx context.Context, username string, appointmentTypeID int64, startDate, endDate string) ([]domain.AvailableSlot, error) {
	params := url.Values{}
	params.Set("appointment_type_id", strconv.FormatInt(appointmentTypeID, 10))
	if startDate != "" {
		params.Set("start_date", startDate)
	}
	if endDate != "" {
		params.Set("end_date", endDate)
	}

	var slots []domain.AvailableSlot
	path := fmt.Sprintf("/appointments-booking/api/public/%s/slots/?%s", username, params.Encode())
	return slots, c.GetJSON(ctx, path, "", &slots)
}

func (c *Client) BookAppointment(ctx context.Context, booking domain.AppointmentBooking) (*domain.AppointmentConfirmation, error) {
	resp, err := c.Do(ctx, http.MethodPost, "/appointments-booking/api/public/book/", booking, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, DecodeAPIError(resp)
	}

	var confirmation domain.AppointmentConfirmation
	if err := json.NewDecoder(resp.Body).Decode(&confirmation); err != nil {
		return nil, fmt.Errorf("decode booking response: %w", err)
	}
	return &confirmation, nil
}
