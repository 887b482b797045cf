// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"peloton/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumRiders   int
	NumPosts    int
	NumMessages int
	ShouldClean bool

	// SkipBcrypt stores a plaintext marker password instead of hashing.
	// Dev/test only; full bcrypt on hundreds of riders is slow.
	SkipBcrypt bool

	// DryRun builds entities without writing to the database.
	DryRun bool

	// MaxDays spreads created_at timestamps over this many days back.
	MaxDays int

	// BatchSize for bulk post inserts.
	BatchSize int

	// FriendsPerRider is the target number of friendships per rider.
	FriendsPerRider int
}

// Seeder populates the database with realistic development data.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
	rng     *rand.Rand
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FriendsPerRider <= 0 {
		opts.FriendsPerRider = 4
	}
	//nolint:gosec // Weak random number generator is fine for seeding
	return &Seeder{
		db:      db,
		opts:    opts,
		factory: NewFactory(db, opts),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Seed populates the database with test data: riders, built-in groups, a
// friendship mesh, posts with replies, and chat history.
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("🌱 Starting database seeding with %d riders and %d posts...", opts.NumRiders, opts.NumPosts)

	s := NewSeeder(db, opts)

	if opts.ShouldClean {
		if err := s.clearData(); err != nil {
			log.Println("⚠️  Warning: Could not clear all existing data, but continuing anyway...")
		}
	}

	riders, err := s.SeedRiders(opts.NumRiders)
	if err != nil {
		return fmt.Errorf("failed to create riders: %w", err)
	}
	log.Printf("✓ %d riders created", len(riders))

	if err := BuiltInGroups(db); err != nil {
		return fmt.Errorf("failed to seed built-in groups: %w", err)
	}

	groups, err := s.seedMemberships(riders)
	if err != nil {
		return fmt.Errorf("failed to seed group memberships: %w", err)
	}
	log.Printf("✓ %d groups populated", len(groups))

	if err := s.SeedFriendshipMesh(riders); err != nil {
		return fmt.Errorf("failed to seed friendships: %w", err)
	}
	log.Println("✓ friendship mesh created")

	posts, err := s.SeedPosts(riders, groups, opts.NumPosts)
	if err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("✓ %d posts created", len(posts))

	if err := s.seedReplies(riders, posts); err != nil {
		return fmt.Errorf("failed to create replies: %w", err)
	}

	if err := s.seedChatHistory(riders, groups, opts.NumMessages); err != nil {
		return fmt.Errorf("failed to create messages: %w", err)
	}

	log.Println("🎉 Database seeding completed successfully!")
	return nil
}

func (s *Seeder) clearData() error {
	log.Println("🗑️  Clearing existing data...")
	sql := `TRUNCATE TABLE post_views, post_replies, post_images, posts,
		group_message_reads, group_messages, group_images, group_members, groups,
		messages, friendships, friend_requests, notifications, push_subscriptions,
		users RESTART IDENTITY CASCADE;`
	return s.db.Exec(sql).Error
}

// SeedRiders creates count riders with generated profiles.
func (s *Seeder) SeedRiders(count int) ([]*models.User, error) {
	riders := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		rider, err := s.factory.CreateRider()
		if err != nil {
			log.Printf("Failed to create rider %d: %v", i, err)
			continue
		}
		riders = append(riders, rider)

		if i > 0 && i%100 == 0 {
			log.Printf("Created %d riders...", i)
		}
	}
	return riders, nil
}

// seedMemberships joins every rider to a few built-in groups. The first
// member of each group becomes its admin so last-admin invariants hold.
func (s *Seeder) seedMemberships(riders []*models.User) ([]models.Group, error) {
	var groups []models.Group
	if err := s.db.Find(&groups).Error; err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return groups, nil
	}

	for gi := range groups {
		group := &groups[gi]
		joined := 0
		for _, rider := range riders {
			if joined > 0 && s.rng.Float32() < 0.6 {
				continue
			}
			role := models.GroupMemberRoleMember
			if joined == 0 {
				role = models.GroupMemberRoleAdmin
			}
			if err := s.factory.AddGroupMember(group, rider, role); err != nil {
				return nil, err
			}
			joined++
		}
	}
	return groups, nil
}

// SeedFriendshipMesh connects each rider to a handful of random others.
func (s *Seeder) SeedFriendshipMesh(riders []*models.User) error {
	if len(riders) < 2 {
		return nil
	}
	for i, rider := range riders {
		for n := 0; n < s.opts.FriendsPerRider; n++ {
			j := s.rng.Intn(len(riders))
			if j == i {
				continue
			}
			if err := s.factory.CreateFriendship(rider, riders[j]); err != nil {
				// Duplicate edges are expected with random picks; skip them.
				continue
			}
		}
	}
	return nil
}

// SeedPosts creates count posts spread across riders; roughly a third land in
// groups.
func (s *Seeder) SeedPosts(riders []*models.User, groups []models.Group, count int) ([]*models.Post, error) {
	if len(riders) == 0 {
		return nil, nil
	}

	posts := make([]*models.Post, 0, count)
	batch := make([]*models.Post, 0, s.opts.BatchSize)

	for i := 0; i < count; i++ {
		rider := riders[s.rng.Intn(len(riders))]

		var groupID *uint
		if len(groups) > 0 && s.rng.Float32() < 0.35 {
			groupID = &groups[s.rng.Intn(len(groups))].ID
		}

		post := s.factory.BuildPost(rider, groupID)
		batch = append(batch, post)

		if len(batch) >= s.opts.BatchSize {
			if err := s.factory.CreatePostsBatch(batch); err != nil {
				return nil, err
			}
			posts = append(posts, batch...)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := s.factory.CreatePostsBatch(batch); err != nil {
			return nil, err
		}
		posts = append(posts, batch...)
	}

	return posts, nil
}

func (s *Seeder) seedReplies(riders []*models.User, posts []*models.Post) error {
	for _, post := range posts {
		replies := s.rng.Intn(5)
		for n := 0; n < replies; n++ {
			rider := riders[s.rng.Intn(len(riders))]
			if _, err := s.factory.CreateReply(rider, post); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Seeder) seedChatHistory(riders []*models.User, groups []models.Group, count int) error {
	if len(riders) < 2 || count <= 0 {
		return nil
	}
	for i := 0; i < count; i++ {
		sender := riders[s.rng.Intn(len(riders))]

		if len(groups) > 0 && s.rng.Float32() < 0.4 {
			group := groups[s.rng.Intn(len(groups))]
			if _, err := s.factory.CreateGroupMessage(&group, sender); err != nil {
				return err
			}
			continue
		}

		receiver := riders[s.rng.Intn(len(riders))]
		if receiver.ID == sender.ID {
			continue
		}
		if _, err := s.factory.CreateDirectMessage(sender, receiver); err != nil {
			return err
		}
	}
	return nil
}
