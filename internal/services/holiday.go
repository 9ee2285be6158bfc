package services

import (
	"time"

	"github.com/6tail/lunar-go/HolidayUtil"
	"github.com/6tail/lunar-go/calendar"
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/at"
	"github.com/rickar/cal/v2/au"
	"github.com/rickar/cal/v2/be"
	"github.com/rickar/cal/v2/br"
	"github.com/rickar/cal/v2/ca"
	"github.com/rickar/cal/v2/ch"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/dk"
	"github.com/rickar/cal/v2/es"
	"github.com/rickar/cal/v2/fi"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/ie"
	"github.com/rickar/cal/v2/it"
	"github.com/rickar/cal/v2/jp"
	"github.com/rickar/cal/v2/nl"
	"github.com/rickar/cal/v2/no"
	"github.com/rickar/cal/v2/nz"
	"github.com/rickar/cal/v2/pl"
	"github.com/rickar/cal/v2/pt"
	"github.com/rickar/cal/v2/se"
	"github.com/rickar/cal/v2/us"
)

// HolidayCountryNone treats Monday to Friday as workdays with no public holidays.
const HolidayCountryNone = "NONE"

type CountryInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type holidayCalendar struct {
	info     CountryInfo
	holidays []*cal.Holiday
}

var holidayCalendars = []holidayCalendar{
	{CountryInfo{"US", "United States"}, us.Holidays},
	{CountryInfo{"GB", "United Kingdom"}, gb.Holidays},
	{CountryInfo{"IE", "Ireland"}, ie.Holidays},
	{CountryInfo{"CA", "Canada"}, ca.Holidays},
	{CountryInfo{"AU", "Australia"}, au.HolidaysNSW},
	{CountryInfo{"NZ", "New Zealand"}, nz.Holidays},
	{CountryInfo{"DE", "Germany"}, de.Holidays},
	{CountryInfo{"FR", "France"}, fr.Holidays},
	{CountryInfo{"IT", "Italy"}, it.Holidays},
	{CountryInfo{"ES", "Spain"}, es.Holidays},
	{CountryInfo{"PT", "Portugal"}, pt.Holidays},
	{CountryInfo{"NL", "Netherlands"}, nl.Holidays},
	{CountryInfo{"BE", "Belgium"}, be.Holidays},
	{CountryInfo{"AT", "Austria"}, at.Holidays},
	{CountryInfo{"CH", "Switzerland"}, ch.Holidays},
	{CountryInfo{"SE", "Sweden"}, se.Holidays},
	{CountryInfo{"NO", "Norway"}, no.Holidays},
	{CountryInfo{"DK", "Denmark"}, dk.Holidays},
	{CountryInfo{"FI", "Finland"}, fi.Holidays},
	{CountryInfo{"PL", "Poland"}, pl.Holidays},
	{CountryInfo{"BR", "Brazil"}, br.Holidays},
	{CountryInfo{"JP", "Japan"}, jp.Holidays},
}

// HolidayService decides which days count as workdays when picking the report day.
type HolidayService struct {
	calendars map[string]*cal.BusinessCalendar
	countries []CountryInfo
}

func NewHolidayService() *HolidayService {
	s := &HolidayService{
		calendars: make(map[string]*cal.BusinessCalendar, len(holidayCalendars)),
		countries: []CountryInfo{{Code: "CN", Name: "China"}},
	}
	for _, hc := range holidayCalendars {
		c := cal.NewBusinessCalendar()
		c.Name = hc.info.Name
		c.AddHoliday(hc.holidays...)
		s.calendars[hc.info.Code] = c
		s.countries = append(s.countries, hc.info)
	}
	s.countries = append(s.countries, CountryInfo{Code: HolidayCountryNone, Name: "Weekdays Only (Mon-Fri)"})
	return s
}

// IsWorkday reports whether t is a workday. Unknown codes fall back to Mon-Fri.
func (s *HolidayService) IsWorkday(t time.Time, countryCode string) bool {
	if countryCode == "CN" {
		return isWorkdayChina(t)
	}

	c, ok := s.calendars[countryCode]
	if !ok {
		return !cal.IsWeekend(t)
	}
	return c.IsWorkday(t)
}

// China shifts workdays around its statutory holidays, so weekends can be workdays.
func isWorkdayChina(t time.Time) bool {
	solar := calendar.NewSolarFromDate(t)
	holiday := HolidayUtil.GetHolidayByYmd(solar.GetYear(), solar.GetMonth(), solar.GetDay())
	if holiday != nil {
		return holiday.IsWork()
	}
	return !cal.IsWeekend(t)
}

// FirstWorkdayOfMonth returns midnight of the first workday in t's month, in t's location.
func (s *HolidayService) FirstWorkdayOfMonth(t time.Time, countryCode string) time.Time {
	day := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	for day.Month() == t.Month() {
		if s.IsWorkday(day, countryCode) {
			return day
		}
		day = day.AddDate(0, 0, 1)
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// IsReportDay is day 1 without a holiday country, otherwise the first workday of the month.
func (s *HolidayService) IsReportDay(t time.Time, countryCode string) bool {
	if countryCode == "" {
		return t.Day() == 1
	}
	first := s.FirstWorkdayOfMonth(t, countryCode)
	return t.Day() == first.Day()
}

func (s *HolidayService) GetSupportedCountries() []CountryInfo {
	out := make([]CountryInfo, len(s.countries))
	copy(out, s.countries)
	return out
}
