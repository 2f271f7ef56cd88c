package ergast

// Wire format of the Ergast API. Every scalar arrives as a string; fields the
// client does not know about are ignored by encoding/json.

type Object struct {
	MRData MRData
}

type MRData struct {
	Series         string `json:"series"`
	Limit          string `json:"limit"`
	Offset         string `json:"offset"`
	Total          string `json:"total"`
	RaceTable      RaceTable
	StandingsTable StandingsTable
}

type RaceTable struct {
	Season string `json:"season"`
	Races  []Race
}

type Location struct {
	Lat      string `json:"lat"`
	Long     string `json:"long"`
	Locality string `json:"locality"`
	Country  string `json:"country"`
}

type Circuit struct {
	CircuitId   string `json:"circuitId"`
	Url         string `json:"url"`
	CircuitName string `json:"circuitName"`
	Location    Location
}

type Session struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type Driver struct {
	DriverId        string `json:"driverId"`
	PermanentNumber string `json:"permanentNumber"`
	Code            string `json:"code"`
	GivenName       string `json:"givenName"`
	FamilyName      string `json:"familyName"`
	Nationality     string `json:"nationality"`
}

type Constructor struct {
	ConstructorId string `json:"constructorId"`
	Url           string `json:"url"`
	Name          string `json:"name"`
	Nationality   string `json:"nationality"`
}

type Time struct {
	Millis string `json:"millis"`
	Time   string `json:"time"`
}

type FastestLap struct {
	Rank string `json:"rank"`
	Lap  string `json:"lap"`
	Time Time
}

type Result struct {
	Number       string `json:"number"`
	Position     string `json:"position"`
	PositionText string `json:"positionText"`
	Points       string `json:"points"`
	Driver       Driver
	Constructor  Constructor
	Grid         string `json:"grid"`
	Laps         string `json:"laps"`
	Status       string `json:"status"`
	Time         Time
	FastestLap   FastestLap
}

type QualifyingResult struct {
	Number      string `json:"number"`
	Position    string `json:"position"`
	Driver      Driver
	Constructor Constructor
	Q1          string `json:"Q1"`
	Q2          string `json:"Q2"`
	Q3          string `json:"Q3"`
}

type Race struct {
	Season            string `json:"season"`
	Round             string `json:"round"`
	Url               string `json:"url"`
	RaceName          string `json:"raceName"`
	Circuit           Circuit
	Date              string `json:"date"`
	Time              string `json:"time"`
	Sprint            Session
	Results           []Result
	SprintResults     []Result
	QualifyingResults []QualifyingResult
}

type DriverStandingsItem struct {
	Position     string `json:"position"`
	PositionText string `json:"positionText"`
	Points       string `json:"points"`
	Wins         string `json:"wins"`
	Driver       Driver
	Constructors []Constructor
}

type ConstructorStandingsItem struct {
	Position     string `json:"position"`
	PositionText string `json:"positionText"`
	Points       string `json:"points"`
	Wins         string `json:"wins"`
	Constructor  Constructor
}

type StandingsListItem struct {
	Season               string `json:"season"`
	Round                string `json:"round"`
	DriverStandings      []DriverStandingsItem
	ConstructorStandings []ConstructorStandingsItem
}

type StandingsTable struct {
	Season         string `json:"season"`
	Round          string `json:"round"`
	StandingsLists []StandingsListItem
}
