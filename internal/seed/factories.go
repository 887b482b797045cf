package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"peloton/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var seedCities = []string{
	"Portland", "Amsterdam", "Girona", "Boulder", "Copenhagen",
	"Tucson", "Nice", "Bergamo", "Vancouver", "Ljubljana",
}

var ridingLevels = []models.RidingLevel{
	models.RidingLevelBeginner,
	models.RidingLevelIntermediate,
	models.RidingLevelAdvanced,
	models.RidingLevelPro,
}

var bikeTypes = []models.BikeType{
	models.BikeTypeRoad,
	models.BikeTypeMountain,
	models.BikeTypeGravel,
	models.BikeTypeHybrid,
	models.BikeTypeEBike,
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	// seed gofakeit for richer content
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{db: db, opts: opts, nextID: 1000}
}

// CreateRider constructs and persists a sample `models.User` with a cycling
// profile. Optional override functions may modify the rider before saving.
func (f *Factory) CreateRider(overrides ...func(*models.User)) (*models.User, error) {
	lat := gofakeit.Latitude()
	lng := gofakeit.Longitude()

	rider := &models.User{
		Username: gofakeit.Username() + fmt.Sprintf("%d", gofakeit.Number(100, 999)),
		Email:    gofakeit.Email(),
		Bio:      gofakeit.Sentence(10),
		Avatar:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		Level:    ridingLevels[gofakeit.Number(0, len(ridingLevels)-1)],
		BikeType: bikeTypes[gofakeit.Number(0, len(bikeTypes)-1)],
		City:     seedCities[gofakeit.Number(0, len(seedCities)-1)],
		Lat:      &lat,
		Lng:      &lng,
	}

	// Password handling: allow skipping bcrypt in dev fast mode
	if f.opts.SkipBcrypt {
		rider.Password = "password123"
	} else {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
		rider.Password = string(hashedPassword)
	}

	for _, override := range overrides {
		override(rider)
	}

	if f.opts.DryRun {
		f.nextID++
		rider.ID = f.nextID
		log.Printf("[dry-run] CreateRider: %s (%s, %s)", rider.Username, rider.City, rider.Level)
		return rider, nil
	}

	if err := f.db.Create(rider).Error; err != nil {
		return nil, err
	}
	return rider, nil
}

// BuildPost constructs a post for the given rider but does not persist it.
// Useful for batching. The created_at timestamp is spread over opts.MaxDays.
func (f *Factory) BuildPost(rider *models.User, groupID *uint, overrides ...func(*models.Post)) *models.Post {
	post := &models.Post{
		Title:   gofakeit.Sentence(5),
		Content: gofakeit.Paragraph(1, 3, 5, "\n"),
		UserID:  rider.ID,
		GroupID: groupID,
	}

	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	//nolint:gosec // Weak random number generator is fine for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	daysBack := r.Intn(maxDays)
	hoursBack := r.Intn(24)
	minsBack := r.Intn(60)
	post.CreatedAt = time.Now().Add(-time.Duration(daysBack)*24*time.Hour -
		time.Duration(hoursBack)*time.Hour - time.Duration(minsBack)*time.Minute)

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePostsBatch persists multiple posts in a single DB call when possible.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if f.opts.DryRun {
		for _, p := range posts {
			f.nextID++
			p.ID = f.nextID
		}
		log.Printf("[dry-run] CreatePostsBatch: %d posts (no DB write)", len(posts))
		return nil
	}
	return f.db.Create(&posts).Error
}

// CreatePost constructs and persists a sample post for the given rider.
func (f *Factory) CreatePost(rider *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(rider, nil, overrides...)

	if f.opts.DryRun {
		f.nextID++
		post.ID = f.nextID
		log.Printf("[dry-run] CreatePost: user=%d title=%q", post.UserID, post.Title)
		return post, nil
	}

	if err := f.db.Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreateReply constructs and persists a reply on the provided post.
func (f *Factory) CreateReply(rider *models.User, post *models.Post, overrides ...func(*models.PostReply)) (*models.PostReply, error) {
	reply := &models.PostReply{
		Content: gofakeit.Sentence(8),
		UserID:  rider.ID,
		PostID:  post.ID,
	}

	for _, override := range overrides {
		override(reply)
	}

	if f.opts.DryRun {
		f.nextID++
		reply.ID = f.nextID
		return reply, nil
	}

	if err := f.db.Create(reply).Error; err != nil {
		return nil, err
	}
	return reply, nil
}

// CreateFriendship persists an accepted friend request between two riders
// plus both directed friendship rows, matching what accepting a request
// produces at runtime.
func (f *Factory) CreateFriendship(requester, addressee *models.User) error {
	if f.opts.DryRun {
		return nil
	}
	return f.db.Transaction(func(tx *gorm.DB) error {
		request := &models.FriendRequest{
			RequesterID: requester.ID,
			AddresseeID: addressee.ID,
			Status:      models.FriendRequestStatusAccepted,
		}
		if err := tx.Create(request).Error; err != nil {
			return err
		}
		edges := []models.Friendship{
			{UserID: requester.ID, FriendID: addressee.ID},
			{UserID: addressee.ID, FriendID: requester.ID},
		}
		return tx.Create(&edges).Error
	})
}

// CreateGroup constructs and persists a riding group created by the rider,
// who is enrolled as its admin.
func (f *Factory) CreateGroup(creator *models.User, overrides ...func(*models.Group)) (*models.Group, error) {
	group := &models.Group{
		Name:        fmt.Sprintf("%s %s", gofakeit.City(), gofakeit.NounAbstract()),
		Description: gofakeit.Sentence(12),
		Type:        models.GroupTypeGeneral,
		CreatedBy:   creator.ID,
	}

	for _, override := range overrides {
		override(group)
	}

	if f.opts.DryRun {
		f.nextID++
		group.ID = f.nextID
		return group, nil
	}

	if err := f.db.Create(group).Error; err != nil {
		return nil, err
	}
	if err := f.AddGroupMember(group, creator, models.GroupMemberRoleAdmin); err != nil {
		return nil, err
	}
	return group, nil
}

// AddGroupMember enrolls a rider into a group. Idempotent per (group, user).
func (f *Factory) AddGroupMember(group *models.Group, rider *models.User, role models.GroupMemberRole) error {
	if f.opts.DryRun {
		return nil
	}
	member := &models.GroupMember{
		GroupID: group.ID,
		UserID:  rider.ID,
		Role:    role,
	}
	return f.db.Clauses(clause.OnConflict{DoNothing: true}).Create(member).Error
}

// CreateDirectMessage constructs and persists a direct message between two
// riders.
func (f *Factory) CreateDirectMessage(sender, receiver *models.User, overrides ...func(*models.Message)) (*models.Message, error) {
	message := &models.Message{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Content:    gofakeit.Sentence(10),
	}

	for _, override := range overrides {
		override(message)
	}

	if f.opts.DryRun {
		f.nextID++
		message.ID = f.nextID
		return message, nil
	}

	if err := f.db.Create(message).Error; err != nil {
		return nil, err
	}
	return message, nil
}

// CreateGroupMessage constructs and persists a message in a group chat.
func (f *Factory) CreateGroupMessage(group *models.Group, sender *models.User, overrides ...func(*models.GroupMessage)) (*models.GroupMessage, error) {
	message := &models.GroupMessage{
		GroupID:  group.ID,
		SenderID: sender.ID,
		Content:  gofakeit.Sentence(10),
	}

	for _, override := range overrides {
		override(message)
	}

	if f.opts.DryRun {
		f.nextID++
		message.ID = f.nextID
		return message, nil
	}

	if err := f.db.Create(message).Error; err != nil {
		return nil, err
	}
	return message, nil
}
