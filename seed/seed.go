// Package seed populates the database with demo accounts and posts.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"instapurr/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Every demo account shares this password.
const demoPassword = "purrfect1"

var (
	usernames = []string{
		"whisker_wanda", "tabby_tom", "mittens_marie", "shadow_sam", "luna_lover",
		"bengal_ben", "calico_cass", "sphynx_steve", "maine_maya", "persian_pete",
		"tuxedo_tina", "ginger_gus", "ragdoll_rita", "siamese_sid", "torbie_tess",
	}

	bios = []string{
		"Cat mom of three. They run the house, I pay the rent.",
		"Professional cat photographer. Amateur cat servant.",
		"Rescue advocate. Adopt, don't shop!",
		"My cat has more followers than me and honestly, fair.",
		"Documenting the daily life of a very dramatic void cat.",
		"Foster home for kittens. Yes, it's chaos. Yes, it's worth it.",
		"Two Maine Coons and a studio apartment. Send help.",
		"Cat cafe regular. Barista knows my order and my cat's name.",
		"Senior cat appreciation account. Old cats are the best cats.",
		"Just here for the whiskers.",
	}

	captions = []string{
		"Caught mid-yawn and still majestic",
		"The loaf has achieved perfect form",
		"He knocked the plant over and has zero regrets",
		"Sunbeam season is officially open",
		"She sits like this on purpose, I'm convinced",
		"New cardboard box arrived, the expensive bed remains untouched",
		"If I fits, I sits: an ongoing study",
		"That 3am zoomies face",
		"Supervising the treat jar as always",
		"Found him like this. No explanation offered.",
		"Window patrol, hour four",
		"Someone discovered the fish tank today",
		"Post-nap stretch of a champion",
		"Judging me from the top of the fridge again",
		"Belly trap at 100% effectiveness",
	}

	comments = []string{
		"What a beautiful cat!",
		"Those eyes!!",
		"I would die for them",
		"The toe beans 😭",
		"This made my day",
		"Absolute unit of a loaf",
		"My cat does the exact same thing",
		"10/10 would pet",
		"The attitude in this photo",
		"Crying, this is perfect",
	}
)

// Options controls how much demo data gets created.
type Options struct {
	Users        int
	PostsPerUser int
}

// Run inserts demo users, posts, likes and comments. It refuses to run
// against a database that already has users so it cannot trample real
// data.
func Run(db *gorm.DB, opts Options) error {
	var existing int64
	if err := db.Model(&models.User{}).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return fmt.Errorf("database already has %d users, refusing to seed", existing)
	}

	gofakeit.Seed(time.Now().UnixNano())

	if opts.Users <= 0 || opts.Users > len(usernames) {
		opts.Users = len(usernames)
	}
	if opts.PostsPerUser <= 0 {
		opts.PostsPerUser = 3
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	users := make([]models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		user := models.User{
			Username:       usernames[i],
			Password:       string(hash),
			Bio:            bios[rand.Intn(len(bios))],
			ProfilePicture: fmt.Sprintf("/uploads/seed/%s.jpg", gofakeit.UUID()),
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("seed user %s: %w", user.Username, err)
		}
		users = append(users, user)
	}
	log.Printf("Seeded %d users (password %q)", len(users), demoPassword)

	var posts []models.Post
	for _, user := range users {
		for p := 0; p < opts.PostsPerUser; p++ {
			post := models.Post{
				ImagePath: fmt.Sprintf("/uploads/seed/%s.jpg", gofakeit.UUID()),
				Caption:   captions[rand.Intn(len(captions))],
				UserID:    user.ID,
			}
			if err := db.Create(&post).Error; err != nil {
				return fmt.Errorf("seed post for %s: %w", user.Username, err)
			}
			posts = append(posts, post)
		}
	}
	log.Printf("Seeded %d posts", len(posts))

	var likeCount, commentCount int
	for _, post := range posts {
		for _, user := range users {
			if user.ID == post.UserID {
				continue
			}
			if rand.Intn(3) == 0 {
				like := models.Like{UserID: user.ID, PostID: post.ID}
				if err := db.Create(&like).Error; err != nil {
					return fmt.Errorf("seed like: %w", err)
				}
				likeCount++
			}
			if rand.Intn(5) == 0 {
				comment := models.Comment{
					Content: comments[rand.Intn(len(comments))],
					UserID:  user.ID,
					PostID:  post.ID,
				}
				if err := db.Create(&comment).Error; err != nil {
					return fmt.Errorf("seed comment: %w", err)
				}
				commentCount++
			}
		}
	}
	log.Printf("Seeded %d likes and %d comments", likeCount, commentCount)

	return nil
}
