package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"letscollab-be/pkg/collabclient"
	"letscollab-be/pkg/realtime"

	"github.com/fatih/color"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

// Simulated participants edit one board concurrently so relay, presence and
// autosave can be watched end to end. Seed a board with cmd/seed first.

type stats struct {
	edits     atomic.Int64
	mutations atomic.Int64
	cursors   atomic.Int64
	titles    atomic.Int64
}

type simScene struct {
	mu       sync.Mutex
	elements []json.RawMessage
	title    string
}

func (s *simScene) ReplaceElements(elements []json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements = elements
}

func (s *simScene) ReplaceTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
}

// edit appends or moves one of this user's shapes and returns the new scene.
func (s *simScene) edit(label string, n int, rng *rand.Rand) []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := fmt.Sprintf("%s-%d", label, n%5)
	el := json.RawMessage(fmt.Sprintf(`{"id":%q,"type":"rectangle","x":%d,"y":%d}`, id, rng.Intn(800), rng.Intn(600)))

	next := make([]json.RawMessage, 0, len(s.elements)+1)
	replaced := false
	for _, existing := range s.elements {
		var head struct {
			Id string `json:"id"`
		}
		if json.Unmarshal(existing, &head) == nil && head.Id == id {
			next = append(next, el)
			replaced = true
			continue
		}
		next = append(next, existing)
	}
	if !replaced {
		next = append(next, el)
	}
	s.elements = next
	return next
}

func signToken(secret, userID, name string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"name":    name,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	return token.SignedString([]byte(secret))
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	baseURL := flag.String("url", "http://localhost:3000", "server base url")
	board := flag.String("board", "", "board id to join")
	users := flag.String("users", "", "comma separated user ids with access to the board")
	duration := flag.Duration("duration", 20*time.Second, "how long to simulate")
	interval := flag.Duration("interval", 200*time.Millisecond, "time between edits per user")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if *board == "" || *users == "" || secret == "" {
		color.Red("board, users and JWT_SECRET are required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	color.Cyan("Simulating %s on board %s\n", *duration, *board)

	var wg sync.WaitGroup
	results := make(map[string]*stats)
	sessions := make(map[string]*collabclient.Session)
	var mu sync.Mutex

	for i, userID := range strings.Split(*users, ",") {
		userID = strings.TrimSpace(userID)
		label := fmt.Sprintf("sim-%d", i)

		token, err := signToken(secret, userID, label)
		if err != nil {
			color.Red("[%s] token: %v", label, err)
			continue
		}

		st := &stats{}
		scene := &simScene{}
		session, err := collabclient.Open(ctx, collabclient.Config{
			BaseURL:     *baseURL,
			Token:       token,
			DisplayName: label,
		}, *board, scene, collabclient.Handlers{
			OnPresence: func(_ string, p realtime.PresencePayload) {
				if p.UserArrived || p.UserDeparted {
					color.Cyan("[%s] presence %s %s (%d online)", label, p.Event, p.DisplayName, len(p.Participants))
				}
			},
			OnMutation: func(_ string, origin string, elements []json.RawMessage) {
				st.mutations.Add(1)
			},
			OnCursor: func(_, _, _ string, _ realtime.CursorPayload) {
				st.cursors.Add(1)
			},
			OnTitle: func(_ string, origin, title string) {
				st.titles.Add(1)
				color.Yellow("[%s] title -> %q", label, title)
			},
			OnError: func(_ string, p realtime.ErrorPayload) {
				color.Red("[%s] server error %s: %s", label, p.Code, p.Message)
			},
			OnTransportError: func(err error) {
				color.Red("[%s] transport: %v", label, err)
			},
		})
		if err != nil {
			color.Red("[%s] open: %v", label, err)
			continue
		}
		color.Green("[%s] joined as %s", label, userID)

		mu.Lock()
		results[label] = st
		sessions[label] = session
		mu.Unlock()

		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			ticker := time.NewTicker(*interval)
			defer ticker.Stop()

			for n := 0; ; n++ {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
				session.LocalChange(scene.edit(label, n, rng))
				session.MoveCursor(float64(rng.Intn(800)), float64(rng.Intn(600)))
				st.edits.Add(1)
				if n > 0 && n%50 == 0 {
					_ = session.SetTitle(ctx, fmt.Sprintf("Edited by %s #%d", label, n))
				}
			}
		}(time.Now().UnixNano() + int64(i))
	}

	wg.Wait()

	color.Cyan("\nResults")
	for label, session := range sessions {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		<-session.Close(closeCtx)
		closeCancel()

		st := results[label]
		line := fmt.Sprintf("[%s] edits=%d recv mutations=%d cursors=%d titles=%d",
			label, st.edits.Load(), st.mutations.Load(), st.cursors.Load(), st.titles.Load())
		if err := session.Reconciler().LastPersistError(); err != nil {
			color.Red("%s last save failed: %v", line, err)
			continue
		}
		color.Green("%s", line)
	}
}
