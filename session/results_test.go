package session

import (
	"reflect"
	"testing"

	"github.com/f11game/f11api/models"
	"github.com/google/uuid"
)

func TestEveryoneReady(t *testing.T) {
	owner := models.RoomPlayer{PlayerID: uuid.New(), IsOwner: true}
	ready := models.RoomPlayer{PlayerID: uuid.New(), IsReady: true}
	waiting := models.RoomPlayer{PlayerID: uuid.New()}

	cases := []struct {
		name    string
		players []models.RoomPlayer
		want    bool
	}{
		{"empty roster", nil, true},
		{"owner alone", []models.RoomPlayer{owner}, true},
		{"owner ignored even when not ready", []models.RoomPlayer{owner, ready}, true},
		{"one member waiting", []models.RoomPlayer{owner, ready, waiting}, false},
		{"all members ready", []models.RoomPlayer{owner, ready, ready}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EveryoneReady(tc.players); got != tc.want {
				t.Errorf("EveryoneReady = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAccuracy(t *testing.T) {
	cases := []struct {
		name    string
		results models.GameResults
		want    float64
	}{
		{"flawless", models.GameResults{Correct: 10}, 100},
		{"nothing answered", models.GameResults{}, 100},
		{"three of four", models.GameResults{Correct: 3, Wrong: 1}, 75},
		{"all wrong", models.GameResults{Wrong: 5}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Accuracy(tc.results); got != tc.want {
				t.Errorf("Accuracy = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTimeAggregates(t *testing.T) {
	r := models.GameResults{Times: []int64{500, 1500, 1000}}
	if got := TotalTimeMillis(r); got != 3000 {
		t.Errorf("TotalTimeMillis = %d, want 3000", got)
	}
	if got := AverageTimeMillis(r); got != 1000 {
		t.Errorf("AverageTimeMillis = %v, want 1000", got)
	}
	if got := AverageTimeMillis(models.GameResults{}); got != 0 {
		t.Errorf("AverageTimeMillis with no times = %v, want 0", got)
	}
}

func TestMostStruggled(t *testing.T) {
	if got := MostStruggled(models.GameResults{Mistakes: models.OpMistakes{}}); got != nil {
		t.Errorf("mistake-free run: got %v, want nil", got)
	}

	r := models.GameResults{Mistakes: models.OpMistakes{
		models.OperatorAdd:      1,
		models.OperatorMultiply: 3,
		models.OperatorDivide:   3,
	}}
	want := []models.Operator{models.OperatorMultiply, models.OperatorDivide}
	if got := MostStruggled(r); !reflect.DeepEqual(got, want) {
		t.Errorf("MostStruggled = %v, want %v", got, want)
	}
}

func TestStandings(t *testing.T) {
	a := uuid.MustParse("40000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("40000000-0000-0000-0000-00000000000b")
	c := uuid.MustParse("40000000-0000-0000-0000-00000000000c")
	players := []models.RoomPlayer{
		{PlayerID: a, Username: "alice"},
		{PlayerID: b, Username: "bob"},
		{PlayerID: c, Username: "carol"},
	}
	positions := map[uuid.UUID]int{a: 4, b: 9, c: 4}

	got := Standings(positions, players)
	want := []Standing{
		{Player: b, Username: "bob", Position: 9},
		{Player: a, Username: "alice", Position: 4},
		{Player: c, Username: "carol", Position: 4},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Standings = %v, want %v", got, want)
	}
}
