// Package main runs end-to-end scenarios against a running scheduling API.
//
// Scenarios cover:
//   - Greeting on a new conversation
//   - Availability listing for an empty day
//   - Booking from a single detailed message
//   - Double booking of an already taken slot
//   - Requests outside operating hours
//   - Admin listing of committed appointments
//
// Every run picks a random weekday a few months ahead so repeated runs against
// a persistent store do not collide.
//
// Usage:
//
//	ADMIN_JWT_SECRET=... API_BASE_URL=... go run ./scripts/e2e              # runs all
//	ADMIN_JWT_SECRET=... API_BASE_URL=... go run ./scripts/e2e booking      # runs one
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// Booking turns can take a couple of LLM round trips.
	maxTurns    = 3
	httpTimeout = 60 * time.Second
)

var (
	apiBase  string
	adminJWT string
	testDay  time.Time
	client   = &http.Client{Timeout: httpTimeout}
)

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

type turn struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
	State          string `json:"state"`
	Appointment    *struct {
		Start       string `json:"start"`
		PatientName string `json:"patient_name"`
	} `json:"appointment"`
}

func postJSON(path string, payload any, out any) (int, error) {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return 0, err
		}
	}
	resp, err := client.Post(apiBase+path, "application/json", &body)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func getJSON(path string, auth bool, out any) (int, error) {
	req, err := http.NewRequest(http.MethodGet, apiBase+path, nil)
	if err != nil {
		return 0, err
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+adminJWT)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

func startConversation() (turn, error) {
	var res turn
	status, err := postJSON("/conversations/start", nil, &res)
	if err == nil && status != http.StatusCreated {
		err = fmt.Errorf("start returned %d", status)
	}
	return res, err
}

func say(conversationID, text string) (turn, error) {
	var res turn
	status, err := postJSON("/conversations/"+conversationID+"/messages", map[string]string{"text": text}, &res)
	if err == nil && status != http.StatusOK {
		err = fmt.Errorf("message returned %d", status)
	}
	fmt.Printf("    > %s\n    < %s\n", text, res.Reply)
	return res, err
}

// bookUntilCommitted sends the opening message and then confirms until the
// assistant commits or gives up.
func bookUntilCommitted(conversationID, opening string) (turn, error) {
	res, err := say(conversationID, opening)
	for i := 1; err == nil && i < maxTurns && res.Appointment == nil && !isTaken(res.Reply); i++ {
		res, err = say(conversationID, "Sim, está tudo certo. Pode confirmar o agendamento.")
	}
	return res, err
}

func isTaken(reply string) bool {
	return strings.Contains(reply, "já está ocupado")
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

func generateJWT(secret string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "e2e",
		"role": "admin",
		"iat":  now.Unix(),
		"exp":  now.Add(time.Hour).Unix(),
	})
	return token.SignedString([]byte(secret))
}

func pickTestDay() time.Time {
	day := time.Now().AddDate(0, 2, rand.IntN(120))
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.Local)
}

func bookingMessage(name string, hour int) string {
	return fmt.Sprintf("Olá! Meu nome é %s, telefone 11 99999-0000. Quero marcar uma limpeza no dia %s às %02d:00.",
		name, testDay.Format("02/01/2006"), hour)
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func scenarioGreeting(t *T) {
	res, err := startConversation()
	if err != nil {
		t.fatalf("start: %v", err)
		return
	}
	t.check("conversation id assigned", res.ConversationID != "")
	t.check("assistant introduces itself by name", containsAny(res.Reply, "Clara"))
	t.check("offers cleaning or evaluation", containsAny(res.Reply, "limpeza", "avaliação"))
}

func scenarioAvailability(t *T) {
	var res struct {
		Slots []string `json:"slots"`
	}
	status, err := getJSON("/availability?date="+testDay.Format("2006-01-02"), false, &res)
	if err != nil {
		t.fatalf("availability: %v", err)
		return
	}
	t.check("availability returns 200", status == http.StatusOK)
	t.check("at most nine hourly slots", len(res.Slots) > 0 && len(res.Slots) <= 9)
	t.check("first slot is within hours", len(res.Slots) > 0 && strings.HasSuffix(res.Slots[0], ":00:00"))
}

func scenarioBooking(t *T) {
	convo, err := startConversation()
	if err != nil {
		t.fatalf("start: %v", err)
		return
	}
	res, err := bookUntilCommitted(convo.ConversationID, bookingMessage("Paciente E2E", 10))
	if err != nil {
		t.fatalf("booking: %v", err)
		return
	}
	t.check("appointment committed", res.Appointment != nil)
	t.check("confirmation text", containsAny(res.Reply, "Agendamento efetuado"))
	t.check("state confirmed", res.State == "confirmed")
}

func scenarioSlotTaken(t *T) {
	for _, name := range []string{"Primeiro E2E", "Segundo E2E"} {
		convo, err := startConversation()
		if err != nil {
			t.fatalf("start: %v", err)
			return
		}
		res, err := bookUntilCommitted(convo.ConversationID, bookingMessage(name, 15))
		if err != nil {
			t.fatalf("booking: %v", err)
			return
		}
		if name == "Primeiro E2E" {
			t.check("first booking committed", res.Appointment != nil)
			continue
		}
		t.check("second booking rejected", res.Appointment == nil)
		t.check("reply says the slot is taken", isTaken(res.Reply))
		t.check("alternatives offered", containsAny(res.Reply, "Horários livres", "Gostaria de escolher"))
	}
}

func scenarioOutsideHours(t *T) {
	convo, err := startConversation()
	if err != nil {
		t.fatalf("start: %v", err)
		return
	}
	res, err := bookUntilCommitted(convo.ConversationID, bookingMessage("Noturno E2E", 20))
	if err != nil {
		t.fatalf("booking: %v", err)
		return
	}
	t.check("nothing committed at 20:00", res.Appointment == nil)
	t.check("reply mentions opening hours", containsAny(res.Reply, "09:00", "18:00", "horário"))
}

func scenarioAdminList(t *T) {
	var res struct {
		Appointments []struct {
			PatientName string `json:"patient_name"`
			Start       string `json:"start"`
		} `json:"appointments"`
	}
	status, err := getJSON("/admin/appointments?date="+testDay.Format("2006-01-02"), true, &res)
	if err != nil {
		t.fatalf("admin list: %v", err)
		return
	}
	t.check("admin list returns 200", status == http.StatusOK)
	found := false
	for _, a := range res.Appointments {
		if a.PatientName == "Paciente E2E" {
			found = true
		}
	}
	t.check("booked patient is listed", found)
}

func main() {
	apiBase = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	secret := os.Getenv("ADMIN_JWT_SECRET")
	if apiBase == "" || secret == "" {
		fmt.Fprintln(os.Stderr, "ERROR: API_BASE_URL and ADMIN_JWT_SECRET required")
		os.Exit(1)
	}
	token, err := generateJWT(secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: sign admin token: %v\n", err)
		os.Exit(1)
	}
	adminJWT = token
	testDay = pickTestDay()
	fmt.Printf("test day: %s\n", testDay.Format("2006-01-02"))

	scenarios := []scenario{
		{"greeting", scenarioGreeting},
		{"availability", scenarioAvailability},
		{"booking", scenarioBooking},
		{"slot-taken", scenarioSlotTaken},
		{"outside-hours", scenarioOutsideHours},
		{"admin-list", scenarioAdminList},
	}

	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed := 0
	totalFailed := 0
	scenarioResults := make([]string, 0)

	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}

		fmt.Printf("\n========================================\n")
		fmt.Printf("SCENARIO: %s\n", s.Name)
		fmt.Printf("========================================\n")

		t := &T{name: s.Name}
		s.Fn(t)

		totalPassed += t.passed
		totalFailed += t.failed

		status := "✅"
		if t.failed > 0 {
			status = "❌"
		}
		scenarioResults = append(scenarioResults, fmt.Sprintf("  %s %s (%d passed, %d failed)", status, s.Name, t.passed, t.failed))
	}

	fmt.Printf("\n========================================\n")
	fmt.Println("SUMMARY")
	fmt.Printf("========================================\n")
	for _, r := range scenarioResults {
		fmt.Println(r)
	}
	fmt.Printf("\nTotal: %d passed, %d failed\n", totalPassed, totalFailed)

	if totalFailed > 0 {
		fmt.Println("\n❌ SOME TESTS FAILED")
		os.Exit(1)
	}
	fmt.Println("\n✅ ALL TESTS PASSED")
}
