package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"time"

	"coursetable/internal/components/assert"
	"coursetable/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	report_client_courses      = "client.courses"
	report_client_same_courses = "client.same-courses"
)

const coursesPath = "/tumonline/ee/rest/slc.tm.cp/student/courses"

type Config struct {
	BaseURL           string  `json:"base_url"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
	TimeoutSeconds    int     `json:"timeout_seconds"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://campus.tum.de",
		RequestsPerSecond: 20,
		Burst:             20,
		TimeoutSeconds:    60,
	}
}

// Client talks to the course catalog REST api. It is safe for concurrent use.
type Client struct {
	http   *resty.Client
	tracer trace.Tracer
	tel    telemetry.API
}

func NewClient(config Config, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	assert.NotEmptyStr(config.BaseURL)
	assert.Positive("burst", config.Burst)

	tel = telemetry.NewScopedAPI("catalog", tel)

	_, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("catalog: invalid base url: %w", err)
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(config.BaseURL)
	httpClient.SetHeader("Accept", "application/json")
	httpClient.SetTimeout(time.Duration(config.TimeoutSeconds) * time.Second)

	rateLimiter := rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel)

	return &Client{
		http:   httpClient,
		tracer: telemetry.Tracer("coursetable/catalog"),
		tel:    tel,
	}, nil
}

// coursesQuery builds the raw query of a course list request, the api expects the filter
// separators unescaped.
func coursesQuery(filter Filter, skip, top int) string {
	return fmt.Sprintf(
		"$filter=curriculumVersionId-eq=%s;termId-eq=%d;&$orderBy=title=ascnf&$skip=%d&$top=%d",
		filter.CurriculumVersionID,
		filter.TermID,
		skip,
		top,
	)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	res, err := c.http.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		return err
	}
	if res.IsError() {
		return fmt.Errorf("GET %s: unexpected status %s", path, res.Status())
	}
	err = json.Unmarshal(res.Body(), out)
	if err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}

// Courses returns one page of the courses matching filter.
func (c *Client) Courses(ctx context.Context, filter Filter, skip, top int) ([]CourseDTO, error) {
	ctx, span := c.tracer.Start(ctx, "catalog.Courses")
	defer span.End()
	span.SetAttributes(
		attribute.Int("term_id", filter.TermID),
		attribute.String("curriculum_version_id", filter.CurriculumVersionID),
		attribute.Int("skip", skip),
	)

	var body coursesResponse
	err := c.get(ctx, coursesPath+"?"+coursesQuery(filter, skip, top), &body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.tel.ReportBroken(report_client_courses, err, filter.TermID, filter.CurriculumVersionID, skip)
		return nil, err
	}
	span.SetAttributes(attribute.Int("count", len(body.Courses)))
	return body.Courses, nil
}

// SameCourses returns the ids of every course the catalog considers the same as courseID,
// ordered from the newest to the oldest term.
func (c *Client) SameCourses(ctx context.Context, courseID int64) ([]int64, error) {
	ctx, span := c.tracer.Start(ctx, "catalog.SameCourses")
	defer span.End()
	span.SetAttributes(attribute.Int64("course_id", courseID))

	var body sameCoursesResponse
	err := c.get(ctx, fmt.Sprintf("%s/same-courses/%d", coursesPath, courseID), &body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.tel.ReportBroken(report_client_same_courses, err, courseID)
		return nil, err
	}

	sort.SliceStable(body.Courses, func(i, j int) bool {
		return body.Courses[i].Semester.ID > body.Courses[j].Semester.ID
	})
	ids := make([]int64, len(body.Courses))
	for i, course := range body.Courses {
		ids[i] = course.ID
	}
	return ids, nil
}

// CourseURL returns the public detail page of a course.
func CourseURL(courseID int64) string {
	return fmt.Sprintf("https://campus.tum.de/tumonline/ee/ui/ca2/app/desktop/#/slc.tm.cp/student/courses/%d", courseID)
}
