package seed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is a named seeding preset loaded from a YAML file, so demo
// environments can be rebuilt reproducibly without long flag lists.
type Profile struct {
	Name            string `yaml:"name"`
	Riders          int    `yaml:"riders"`
	Posts           int    `yaml:"posts"`
	Messages        int    `yaml:"messages"`
	FriendsPerRider int    `yaml:"friends_per_rider"`
	MaxDays         int    `yaml:"max_days"`
	Clean           bool   `yaml:"clean"`
	SkipBcrypt      bool   `yaml:"skip_bcrypt"`
}

// LoadProfile reads a seeding profile from a YAML file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse seed profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid seed profile %s: %w", path, err)
	}
	return &p, nil
}

// Validate checks the profile for nonsensical values.
func (p *Profile) Validate() error {
	if p.Riders < 0 || p.Posts < 0 || p.Messages < 0 {
		return fmt.Errorf("counts must be non-negative")
	}
	if p.MaxDays < 0 {
		return fmt.Errorf("max_days must be non-negative")
	}
	return nil
}

// Options converts the profile into seeder options.
func (p *Profile) Options() Options {
	return Options{
		NumRiders:       p.Riders,
		NumPosts:        p.Posts,
		NumMessages:     p.Messages,
		FriendsPerRider: p.FriendsPerRider,
		MaxDays:         p.MaxDays,
		ShouldClean:     p.Clean,
		SkipBcrypt:      p.SkipBcrypt,
	}
}
