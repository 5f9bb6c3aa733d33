package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"workflow/backend/internal/model"
	"workflow/backend/internal/policy"
	"workflow/backend/internal/repository"
)

const (
	sheetProjects  = "Projects"
	sheetAttention = "Needs attention"
)

// ExportService spreadsheet exports
//
// The workbook is returned as a buffer; the handler sets the download headers.
type ExportService interface {
	// ExportProjects writes every project plus an overdue/help sheet.
	ExportProjects(ctx context.Context, actor policy.Actor) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	clock  Clock
	loc    *time.Location
	logger *zap.Logger
}

// NewExportService creates the ExportService.
func NewExportService(repo *repository.Repository, clock Clock, loc *time.Location, logger *zap.Logger) ExportService {
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &exportService{repo: repo, clock: clock, loc: loc, logger: logger}
}

var projectHeader = []string{
	"Project", "Status", "Difficulty", "Duration (days)", "Start", "Deadline", "Days left", "PM", "Members",
}

func (s *exportService) ExportProjects(ctx context.Context, actor policy.Actor) (*bytes.Buffer, string, error) {
	if err := policy.Authorize(actor, policy.ProjectOverview, policy.None); err != nil {
		return nil, "", err
	}
	projects, err := s.repo.Project.List(ctx, repository.ProjectFilter{})
	if err != nil {
		s.logger.Error("load projects for export failed", zap.Error(err))
		return nil, "", err
	}
	now := s.clock().In(s.loc)

	// overdue first, then help projects not already listed
	attention := OverdueProjects(projects, now)
	listed := make(map[uint]bool, len(attention))
	for _, p := range attention {
		listed[p.ID] = true
	}
	for _, p := range ProjectsNeedingHelp(projects) {
		if !listed[p.ID] {
			attention = append(attention, p)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetProjects); err != nil {
		return nil, "", err
	}
	if _, err := f.NewSheet(sheetAttention); err != nil {
		return nil, "", err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for _, sheet := range []struct {
		name string
		rows []model.Project
	}{
		{sheetProjects, projects},
		{sheetAttention, attention},
	} {
		if err := writeProjectSheet(f, sheet.name, sheet.rows, now, headerStyle); err != nil {
			s.logger.Error("write export sheet failed", zap.String("sheet", sheet.name), zap.Error(err))
			return nil, "", err
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("write workbook failed", zap.Error(err))
		return nil, "", err
	}
	return buf, fmt.Sprintf("projects_%s.xlsx", now.Format("20060102")), nil
}

func writeProjectSheet(f *excelize.File, sheet string, projects []model.Project, now time.Time, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &projectHeader); err != nil {
		return err
	}
	last := cellName(len(projectHeader), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	_ = f.SetColWidth(sheet, "A", "A", 32)
	_ = f.SetColWidth(sheet, "B", "I", 14)

	for i := range projects {
		p := &projects[i]
		pm := ""
		if p.PMUser != nil {
			pm = p.PMUser.FirstName
		}
		row := []interface{}{
			p.ProjectName,
			p.Status.Label(),
			p.DifficultyLevel,
			p.DurationDays,
			model.FormatDate(p.StartDate),
			model.FormatDate(p.Deadline),
			p.DaysLeft(now),
			pm,
			len(p.Members),
		}
		if err := f.SetSheetRow(sheet, cellName(1, i+2), &row); err != nil {
			return err
		}
	}
	return nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
