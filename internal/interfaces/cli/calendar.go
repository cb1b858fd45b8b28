package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/deadline-agent/internal/domain/calendar"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

const maxBusinessDays = 3660

func newHolidaysCmd() *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "holidays",
		Short: "List the Portuguese public holidays of a year",
		Args:  cobra.NoArgs,
		RunE: runWith(func(cmd *cobra.Command, _ []string, cc *CLIContext) error {
			y := cc.Reference.Year
			if cmd.Flags().Changed("year") {
				if year < 1 || year > 9999 {
					return errors.InvalidParam("year must be between 1 and 9999").WithDetail(strconv.Itoa(year))
				}
				y = year
			}
			holidays := cc.Service.Calendar().Holidays().InYear(y)
			if holidays == nil {
				holidays = []calendar.Holiday{}
			}
			return PrintResult(cmd, &holidaysView{Year: y, Holidays: holidays})
		}),
	}
	cmd.Flags().IntVarP(&year, "year", "y", 0, "calendar year (default: the reference year)")
	return cmd
}

type holidaysView struct {
	Year     int                `json:"year"`
	Holidays []calendar.Holiday `json:"holidays"`
}

func (v *holidaysView) TableHeaders() []string { return []string{"Date", "Weekday", "Holiday"} }

func (v *holidaysView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Holidays))
	for _, h := range v.Holidays {
		rows = append(rows, []string{h.Date.String(), h.Date.Weekday().String(), h.Name})
	}
	return rows
}

func (v *holidaysView) WriteText(w io.Writer) {
	if len(v.Holidays) == 0 {
		fmt.Fprintf(w, "No holidays known for %d\n", v.Year)
		return
	}
	for _, h := range v.Holidays {
		fmt.Fprintf(w, "%s  %-9s  %s\n", h.Date, h.Date.Weekday(), h.Name)
	}
}

func newBusinessDaysCmd() *cobra.Command {
	var (
		start string
		days  int
		end   string
	)

	cmd := &cobra.Command{
		Use:   "business-days",
		Short: "Add business days to a date, or count them between two dates",
		Long: `With --days, print the date N business days after --start; the start day
itself never counts. With --end, count business days in (start, end].
Weekends and Portuguese public holidays are skipped.`,
		Example: `  deadline business-days --start 2025-05-29 --days 15
  deadline business-days --start 2025-05-29 --end 2025-06-23`,
		Args: cobra.NoArgs,
		RunE: runWith(func(cmd *cobra.Command, _ []string, cc *CLIContext) error {
			from := cc.Reference
			if start != "" {
				d, err := calendar.ParseDate(start)
				if err != nil {
					return errors.InvalidParam("start must be YYYY-MM-DD").WithDetail(start)
				}
				from = d
			}
			cal := cc.Service.Calendar()
			v := &businessDaysView{Start: from, StartIsBizDay: cal.IsBusinessDay(from)}

			daysSet, endSet := cmd.Flags().Changed("days"), end != ""
			switch {
			case daysSet && endSet:
				return errors.InvalidParam("give either --days or --end, not both")
			case daysSet:
				if days < 0 || days > maxBusinessDays {
					return errors.InvalidParam("days must be between 0 and " + strconv.Itoa(maxBusinessDays)).WithDetail(strconv.Itoa(days))
				}
				d, err := cal.AddBusinessDays(from, days)
				if err != nil {
					return err
				}
				v.Days, v.Deadline = &days, &d
			case endSet:
				to, err := calendar.ParseDate(end)
				if err != nil {
					return errors.InvalidParam("end must be YYYY-MM-DD").WithDetail(end)
				}
				count := cal.BusinessDaysBetween(from, to)
				v.End, v.Count = &to, &count
			default:
				return errors.InvalidParam("one of --days or --end is required")
			}
			return PrintResult(cmd, v)
		}),
	}
	cmd.Flags().StringVar(&start, "start", "", "start date YYYY-MM-DD (default: the reference date)")
	cmd.Flags().IntVarP(&days, "days", "n", 0, "business days to add")
	cmd.Flags().StringVar(&end, "end", "", "end date YYYY-MM-DD to count up to")
	return cmd
}

type businessDaysView struct {
	Start         calendar.Date  `json:"start"`
	Days          *int           `json:"days,omitempty"`
	Deadline      *calendar.Date `json:"deadline,omitempty"`
	End           *calendar.Date `json:"end,omitempty"`
	Count         *int           `json:"count,omitempty"`
	StartIsBizDay bool           `json:"start_is_business_day"`
}

func (v *businessDaysView) TableHeaders() []string {
	if v.Deadline != nil {
		return []string{"Start", "Business days", "Deadline"}
	}
	return []string{"Start", "End", "Business days"}
}

func (v *businessDaysView) TableRows() [][]string {
	if v.Deadline != nil {
		return [][]string{{v.Start.String(), strconv.Itoa(*v.Days), v.Deadline.String()}}
	}
	return [][]string{{v.Start.String(), v.End.String(), strconv.Itoa(*v.Count)}}
}

func (v *businessDaysView) WriteText(w io.Writer) {
	if v.Deadline != nil {
		fmt.Fprintf(w, "%d business days after %s: %s\n", *v.Days, v.Start, color.New(color.Bold).Sprint(v.Deadline.String()))
	} else {
		fmt.Fprintf(w, "Business days in (%s, %s]: %d\n", v.Start, v.End, *v.Count)
	}
	if !v.StartIsBizDay {
		fmt.Fprintf(w, "Note: %s is not a business day\n", v.Start)
	}
}
