package lifecycle

import (
	"context"
	"errors"

	"collabforcause/models"
	"collabforcause/utils"

	"gorm.io/gorm"
)

// ContributionFilter narrows a contribution listing. It never widens the
// caller's visibility scope.
type ContributionFilter struct {
	ProjectID   uint
	VolunteerID uint
	Statuses    []string
}

// ContributionScope restricts a contribution query to the rows caller may
// read: a volunteer sees their own, an ngo sees those of projects it created.
func ContributionScope(caller *models.User) (func(*gorm.DB) *gorm.DB, error) {
	if caller == nil {
		return nil, utils.Unauthenticated("Not authorized to access this route")
	}
	switch caller.Role {
	case models.RoleVolunteer:
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("contributions.volunteer_id = ?", caller.ID)
		}, nil
	case models.RoleNGO:
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("contributions.project_id IN (?)",
				db.Session(&gorm.Session{NewDB: true}).Model(&models.Project{}).Select("id").Where("created_by = ?", caller.ID))
		}, nil
	default:
		return nil, utils.Forbidden("Unrecognized account role")
	}
}

// CanViewContribution applies the same rule as ContributionScope to a loaded
// record. project is the contribution's project and may be nil when it has
// been deleted.
func CanViewContribution(caller *models.User, c *models.Contribution, project *models.Project) bool {
	if caller == nil || c == nil {
		return false
	}
	switch caller.Role {
	case models.RoleVolunteer:
		return c.VolunteerID == caller.ID
	case models.RoleNGO:
		return project.OwnedBy(caller)
	default:
		return false
	}
}

func (e *Engine) ListContributions(ctx context.Context, caller *models.User, f ContributionFilter) ([]models.Contribution, error) {
	scope, err := ContributionScope(caller)
	if err != nil {
		return nil, err
	}

	q := e.DB.WithContext(ctx).Model(&models.Contribution{}).Scopes(scope)
	if f.ProjectID != 0 {
		q = q.Where("contributions.project_id = ?", f.ProjectID)
	}
	if f.VolunteerID != 0 && caller.Role == models.RoleNGO {
		q = q.Where("contributions.volunteer_id = ?", f.VolunteerID)
	}
	q = q.Scopes(models.StatusIn(f.Statuses))

	contributions := []models.Contribution{}
	err = q.Preload("Task").
		Preload("Project").
		Preload("Volunteer", models.UserSummary).
		Order("contributions.created_at DESC").
		Find(&contributions).Error
	if err != nil {
		return nil, utils.Internal("failed to list contributions", err)
	}
	return contributions, nil
}

// GetContribution loads one contribution and checks that caller may see it.
func (e *Engine) GetContribution(ctx context.Context, caller *models.User, id uint) (*models.Contribution, error) {
	if caller == nil {
		return nil, utils.Unauthenticated("Not authorized to access this route")
	}
	var c models.Contribution
	err := e.DB.WithContext(ctx).
		Preload("Task").
		Preload("Project").
		Preload("Volunteer", models.UserSummary).
		First(&c, id).Error
	if err != nil {
		return nil, notFoundOr(err, "Contribution not found", "failed to load contribution")
	}
	if !CanViewContribution(caller, &c, c.Project) {
		return nil, utils.Forbidden("Not authorized to access this contribution")
	}
	return &c, nil
}

func notFoundOr(err error, notFound, internal string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.NotFound(notFound)
	}
	return utils.Internal(internal, err)
}
