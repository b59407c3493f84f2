package domain

import "github.com/shopspring/decimal"

// Content types returned by the remote storefront API. These are plain
// fetch-and-render payloads with no client-side state behind them.

type BlogPost struct {
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	Content       string `json:"content"`
	CreatedAt     string `json:"created_at"`
	IsPublished   bool   `json:"is_published"`
	PublishedAt   string `json:"published_at"`
	FeaturedImage string `json:"featured_image,omitempty"`
	YoutubeURL    string `json:"youtube_url,omitempty"`
	IsFeatured    bool   `json:"is_featured"`
}

type PageFeature struct {
	ID      int64  `json:"id"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	Icon    string `json:"icon,omitempty"`
	Order   int    `json:"order"`
}

type Page struct {
	ID              int64         `json:"id"`
	Slug            string        `json:"slug"`
	Title           string        `json:"title"`
	Subtitle        string        `json:"subtitle,omitempty"`
	Content         string        `json:"content"`
	MetaDescription string        `json:"meta_description,omitempty"`
	IsPublished     bool          `json:"is_published"`
	Order           int           `json:"order"`
	HeroTitle       string        `json:"hero_title,omitempty"`
	HeroSubtitle    string        `json:"hero_subtitle,omitempty"`
	HeroImage       string        `json:"hero_image,omitempty"`
	Features        []PageFeature `json:"features,omitempty"`
}

type Link struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Icon        string `json:"icon,omitempty"`
	MediaType   string `json:"media_type"`
	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`
	Order       int    `json:"order"`
}

type LinkHub struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Slug            string `json:"slug"`
	Description     string `json:"description,omitempty"`
	BackgroundImage string `json:"background_image,omitempty"`
	Order           int    `json:"order"`
	Links           []Link `json:"links"`
}

type Testimonial struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Content  string `json:"content"`
	Category string `json:"category,omitempty"`
	Rating   int    `json:"rating,omitempty"`
	Featured bool   `json:"is_featured"`
}

type Course struct {
	ID          int64           `json:"id"`
	Slug        string          `json:"slug"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	IsPublished bool            `json:"is_published"`
}

type CourseEnrollment struct {
	ID         int64  `json:"id"`
	Course     Course `json:"course"`
	EnrolledAt string `json:"enrolled_at"`
	Completed  bool   `json:"completed"`
}

type LessonProgress struct {
	ID          int64  `json:"id"`
	Lesson      int64  `json:"lesson"`
	Completed   bool   `json:"completed"`
	CompletedAt string `json:"completed_at,omitempty"`
}

type AppointmentType struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	DurationMinutes int             `json:"duration_minutes"`
	Price           decimal.Decimal `json:"price"`
	Description     string          `json:"description,omitempty"`
}

// CalendarUser is the public booking page for one seller: identity plus the
// appointment types open for booking.
type CalendarUser struct {
	Username            string            `json:"username"`
	BusinessName        string            `json:"business_name"`
	DisplayName         string            `json:"display_name"`
	Timezone            string            `json:"timezone"`
	BookingInstructions string            `json:"booking_instructions"`
	AppointmentTypes    []AppointmentType `json:"appointment_types"`
}

type AvailableSlot struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type AppointmentBooking struct {
	AppointmentTypeID int64  `json:"appointment_type_id"`
	CustomerName      string `json:"customer_name"`
	CustomerEmail     string `json:"customer_email"`
	CustomerPhone     string `json:"customer_phone,omitempty"`
	CustomerNotes     string `json:"customer_notes,omitempty"`
	Date              string `json:"date"`
	StartTime         string `json:"start_time"`
}

type AppointmentConfirmation struct {
	ID              int64            `json:"id"`
	Status          string           `json:"status"`
	PaymentRequired bool             `json:"payment_required"`
	PaymentAmount   *decimal.Decimal `json:"payment_amount,omitempty"`
	CustomerName    string           `json:"customer_name"`
	CustomerEmail   string           `json:"customer_email"`
	Date            string           `json:"date"`
	StartTime       string           `json:"start_time"`
	EndTime         string           `json:"end_time"`
}
