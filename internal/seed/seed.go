// Package seed creates demo users for local development and tests.
package seed

import (
	"context"
	"fmt"
	"strings"

	"bsuchat/internal/models"

	"github.com/brianvoe/gofakeit/v6"
)

// Options configures a seeding run.
type Options struct {
	NumUsers int
	// Seed makes the generated data reproducible. Zero picks a random seed.
	Seed int64
	// Faculty pins every user to one faculty. Empty spreads users across all of them.
	Faculty string
}

// UserWriter is the persistence surface the seeder needs.
type UserWriter interface {
	Upsert(ctx context.Context, users []models.User) error
}

var (
	femaleNames = []string{
		"Aysel", "Leyla", "Nigar", "Günay", "Səbinə", "Aynur",
		"Lalə", "Nərmin", "Aydan", "Fidan", "Könül", "Təranə",
	}

	maleNames = []string{
		"Elvin", "Rəşad", "Orxan", "Tural", "Kamran", "Murad",
		"Fərid", "Samir", "Zaur", "Ülvi", "Nurlan", "Vüsal",
	}

	lastNames = []string{
		"Məmmədov", "Əliyev", "Həsənov", "Hüseynov", "Quliyev", "İsmayılov",
		"Abbasov", "Rzayev", "Kərimov", "Cəfərov", "Nəsirov", "Bağırov",
	}

	degrees = []string{"bakalavr", "magistr"}
)

// Users generates and stores opts.NumUsers demo users and returns them.
func Users(ctx context.Context, repo UserWriter, opts Options) ([]models.User, error) {
	if opts.NumUsers <= 0 {
		return nil, nil
	}
	f := NewFactory(opts.Seed)

	users := make([]models.User, 0, opts.NumUsers)
	for i := range opts.NumUsers {
		users = append(users, f.BuildUser(func(u *models.User) {
			if opts.Faculty != "" {
				u.Faculty = opts.Faculty
			} else {
				u.Faculty = models.Faculties[i%len(models.Faculties)]
			}
		}))
	}

	if err := repo.Upsert(ctx, users); err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	return users, nil
}

// Factory builds demo entities without touching storage.
type Factory struct {
	faker *gofakeit.Faker
}

// NewFactory returns a Factory. A zero seed draws a random one.
func NewFactory(seed int64) *Factory {
	return &Factory{faker: gofakeit.New(seed)}
}

// BuildUser returns an active user with a random name, faculty and course.
func (f *Factory) BuildUser(overrides ...func(*models.User)) models.User {
	first := f.faker.RandomString(maleNames)
	last := f.faker.RandomString(lastNames)
	if f.faker.Bool() {
		first = f.faker.RandomString(femaleNames)
		last += "a"
	}

	degree := f.faker.RandomString(degrees)
	maxCourse := 4
	if degree == "magistr" {
		maxCourse = 2
	}

	id := "u_" + strings.ReplaceAll(f.faker.UUID(), "-", "")[:12]
	user := models.User{
		ID:       id,
		Email:    id + "@bsu.edu.az",
		Phone:    f.faker.Numerify("+99450#######"),
		FullName: first + " " + last,
		Faculty:  f.faker.RandomString(models.Faculties),
		Degree:   degree,
		Course:   f.faker.Number(1, maxCourse),
		Status:   models.UserStatusActive,
	}
	for _, override := range overrides {
		override(&user)
	}
	return user
}
