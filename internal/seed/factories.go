// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"booking/internal/models"

	"github.com/brianvoe/gofakeit/v6"
)

var (
	departments = []string{
		"Physics", "Chemistry", "Biology", "Mathematics", "History",
		"Economics", "Computer Science", "Philosophy", "Music", "Geography",
	}

	resourceKinds = []string{
		"Seminar Hall", "Lecture Theatre", "Conference Room", "Auditorium",
		"Projector", "Sound System", "Studio", "Laboratory", "Lab Bench",
	}

	sections = []string{"Main", "North Wing", "South Wing", "Annex", "Library"}

	// slaChoices mixes short SLAs, which breach quickly after seeding, with the default.
	slaChoices = []int{60, 240, 1440, models.DefaultSLAMinutes, 4320}

	eventKinds = []string{
		"Guest lecture", "Thesis defense", "Department colloquium", "Workshop",
		"Reading group", "Faculty meeting", "Student showcase", "Exam review",
	}
)

// Factory builds domain entities. It does not persist them.
type Factory struct {
	faker *gofakeit.Faker
	seq   int
}

// NewFactory creates a Factory. A zero seed picks a random one.
func NewFactory(seed int64) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{faker: gofakeit.New(seed)}
}

func (f *Factory) next() int {
	f.seq++
	return f.seq
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// emailPart lowercases s and drops anything that is not a letter.
func emailPart(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}

// BuildUser returns a user with a unique email in the organization's domain.
func (f *Factory) BuildUser(role models.Role, org models.Organization) *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	u := &models.User{
		Name:         first + " " + last,
		Email:        fmt.Sprintf("%s.%s.%d@%s.test", emailPart(first), emailPart(last), f.next(), emailPart(string(org))),
		Role:         role,
		Organization: org,
	}
	if role == models.RoleFaculty {
		u.Department = f.faker.RandomString(departments)
	}
	return u
}

// BuildResource returns an available resource with a randomly chosen SLA.
func (f *Factory) BuildResource(org models.Organization) *models.Resource {
	kind := f.faker.RandomString(resourceKinds)
	return &models.Resource{
		Name:         fmt.Sprintf("%s %s %d", capitalize(f.faker.Adjective()), kind, f.next()),
		Description:  f.faker.Sentence(10),
		Organization: org,
		Section:      f.faker.RandomString(sections),
		Availability: true,
		SLAMinutes:   slaChoices[f.faker.Number(0, len(slaChoices)-1)],
	}
}

// BuildRequest returns a pending request by requester for resource, submitted
// within the three days before now for an event up to a month after it.
func (f *Factory) BuildRequest(requester *models.User, resource *models.Resource, now time.Time) *models.Request {
	createdAt := now.Add(-time.Duration(f.faker.Number(0, 72*60)) * time.Minute)
	requested := now.AddDate(0, 0, f.faker.Number(1, 30)).Truncate(24 * time.Hour)

	priority := models.PriorityNormal
	if f.faker.Number(1, 5) == 1 {
		priority = models.PriorityUrgent
	}

	return &models.Request{
		RequesterID:   requester.ID,
		ResourceID:    resource.ID,
		Organization:  requester.Organization,
		EventDetails:  fmt.Sprintf("%s: %s", f.faker.RandomString(eventKinds), f.faker.Sentence(6)),
		RequestedDate: requested,
		DurationDays:  f.faker.Number(1, 3),
		Priority:      priority,
		Status:        models.StatusPending,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}
