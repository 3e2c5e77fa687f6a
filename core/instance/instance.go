// Package instance tracks who may edit a running activity.
// Only one group member, the active student, edits at a time; the others see a read-only mirror.
package instance

import (
	"errors"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/volatiletech/null/v8"
)

// PresenceWindow is how recent a heartbeat must be for a member to count as present.
const PresenceWindow = 30 * time.Second

var (
	// errors
	ErrNotFound   = errors.New("activity instance not found")
	ErrNoMembers  = errors.New("no members in group")
	ErrNotMember  = errors.New("user is not in any group for this activity")
	ErrNotPresent = errors.New("no currently present group members")
)

type (
	Member struct {
		StudentID     int
		LastHeartbeat null.Time
	}

	Instance struct {
		ID              int
		ActivityID      int
		ActiveStudentID null.Int
		Members         []Member
	}

	Repository interface {
		GetInstance(id int) (Instance, error)
		SetActiveStudent(instanceID, studentID int) error
		TouchMember(instanceID, studentID int, at time.Time) error
	}

	Service struct {
		repo  Repository
		clock clock.Clock
		intn  func(n int) int
	}
)

func (inst Instance) HasMember(userID int) bool {
	for _, m := range inst.Members {
		if m.StudentID == userID {
			return true
		}
	}
	return false
}

// IsActive reports whether userID may edit: they are the recorded active
// student, or the only member of the group.
func (inst Instance) IsActive(userID int) bool {
	if inst.ActiveStudentID.Valid && inst.ActiveStudentID.Int == userID {
		return true
	}
	return len(inst.Members) == 1 && inst.Members[0].StudentID == userID
}

func NewService(repo Repository, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.New()
	}
	return &Service{repo: repo, clock: clk, intn: rand.Intn}
}

func (svc *Service) Get(id int) (Instance, error) {
	return svc.repo.GetInstance(id)
}

// Heartbeat records that a member is present.
func (svc *Service) Heartbeat(instanceID, userID int) error {
	inst, err := svc.repo.GetInstance(instanceID)
	if err != nil {
		return err
	}
	if !inst.HasMember(userID) {
		return ErrNotMember
	}
	return svc.repo.TouchMember(instanceID, userID, svc.clock.Now().UTC())
}

// ActiveStudent returns the active student, electing one at random among the
// present members when none is recorded (or the recorded one left the group).
func (svc *Service) ActiveStudent(instanceID, userID int) (int, error) {
	inst, err := svc.repo.GetInstance(instanceID)
	if err != nil {
		return 0, err
	}
	if inst.ActiveStudentID.Valid && inst.HasMember(inst.ActiveStudentID.Int) {
		return inst.ActiveStudentID.Int, nil
	}
	if !inst.HasMember(userID) {
		return 0, ErrNotMember
	}

	since := svc.clock.Now().Add(-PresenceWindow)
	present := make([]int, 0, len(inst.Members))
	for _, m := range inst.Members {
		if !m.LastHeartbeat.Valid || m.LastHeartbeat.Time.After(since) {
			present = append(present, m.StudentID)
		}
	}
	if len(present) == 0 {
		return 0, ErrNotPresent
	}

	selected := present[0]
	if len(present) > 1 {
		selected = present[svc.intn(len(present))]
	}
	if err := svc.repo.SetActiveStudent(instanceID, selected); err != nil {
		return 0, err
	}
	return selected, nil
}

// Rotate hands editing over to another member picked at random.
// A member alone in their group stays active.
func (svc *Service) Rotate(instanceID, currentStudentID int) (int, error) {
	inst, err := svc.repo.GetInstance(instanceID)
	if err != nil {
		return 0, err
	}
	if len(inst.Members) == 0 {
		return 0, ErrNoMembers
	}

	others := make([]int, 0, len(inst.Members))
	for _, m := range inst.Members {
		if m.StudentID != currentStudentID {
			others = append(others, m.StudentID)
		}
	}
	next := inst.Members[0].StudentID
	if len(others) > 0 {
		next = others[svc.intn(len(others))]
	}
	if err := svc.repo.SetActiveStudent(instanceID, next); err != nil {
		return 0, err
	}
	return next, nil
}
