package mapping

import (
	"fmt"

	"pawarisk/pkg/types"
)

// Code mappings shipped with the binary. These cover the football catalogue
// the reference platform offers; operator rows can override any of them by
// canonical id. Keep this table append-only — canonical ids are stable
// across releases and are persisted in the current/history relations.

func out(canonical, bp, sb, b9 string, pos int) OutcomeMapping {
	return OutcomeMapping{CanonicalID: canonical, BetPawaName: bp, SportyBetDesc: sb, Bet9jaSuffix: b9, Position: pos}
}

// Shared outcome sets. The Bet9ja suffix is the trailing token of the raw
// key ("S_1X2_1" → "1"); SportyBet descs are the exact outcome.desc strings.
func outs1X2() []OutcomeMapping {
	return []OutcomeMapping{
		out("home", "1", "Home", "1", 0),
		out("draw", "X", "Draw", "X", 1),
		out("away", "2", "Away", "2", 2),
	}
}

func outsOverUnder() []OutcomeMapping {
	return []OutcomeMapping{
		out("over", "Over", "Over", "O", 0),
		out("under", "Under", "Under", "U", 1),
	}
}

func outsYesNo() []OutcomeMapping {
	return []OutcomeMapping{
		out("yes", "Yes", "Yes", "Y", 0),
		out("no", "No", "No", "N", 1),
	}
}

func outsOddEven() []OutcomeMapping {
	return []OutcomeMapping{
		out("odd", "Odd", "Odd", "O", 0),
		out("even", "Even", "Even", "E", 1),
	}
}

func outsDoubleChance() []OutcomeMapping {
	return []OutcomeMapping{
		out("home_draw", "1X", "Home or Draw", "1X", 0),
		out("home_away", "12", "Home or Away", "12", 1),
		out("draw_away", "X2", "Draw or Away", "X2", 2),
	}
}

func outsDNB() []OutcomeMapping {
	return []OutcomeMapping{
		out("home", "1", "Home", "1", 0),
		out("away", "2", "Away", "2", 1),
	}
}

func outsHandicap3() []OutcomeMapping {
	return []OutcomeMapping{
		out("home", "1", "Home", "1", 0),
		out("draw", "X", "Draw", "X", 1),
		out("away", "2", "Away", "2", 2),
	}
}

func outsHTFT() []OutcomeMapping {
	pairs := []struct{ bp, sb, b9 string }{
		{"1/1", "Home/Home", "11"}, {"1/X", "Home/Draw", "1X"}, {"1/2", "Home/Away", "12"},
		{"X/1", "Draw/Home", "X1"}, {"X/X", "Draw/Draw", "XX"}, {"X/2", "Draw/Away", "X2"},
		{"2/1", "Away/Home", "21"}, {"2/X", "Away/Draw", "2X"}, {"2/2", "Away/Away", "22"},
	}
	res := make([]OutcomeMapping, 0, len(pairs))
	for i, p := range pairs {
		res = append(res, out(p.b9, p.bp, p.sb, p.b9, i))
	}
	return res
}

func mk(canonical, name string, handler types.HandlerKind, bp, sb, b9 string, outcomes []OutcomeMapping) MarketMapping {
	return MarketMapping{
		CanonicalID: canonical,
		Name:        name,
		Handler:     handler,
		BetPawaID:   bp,
		SportyBetID: sb,
		Bet9jaKey:   b9,
		Outcomes:    outcomes,
		Source:      "code",
		Active:      true,
	}
}

// CodeMappings returns the immutable built-in catalogue.
func CodeMappings() []MarketMapping {
	ms := []MarketMapping{
		// Match result family
		mk("1x2", "1X2 | Full Time", types.HandlerSimple, "3743", "1", "S_1X2", outs1X2()),
		mk("1x2_1h", "1X2 | 1st Half", types.HandlerSimple, "3744", "8", "S_1X2HT", outs1X2()),
		mk("1x2_2h", "1X2 | 2nd Half", types.HandlerSimple, "3745", "84", "S_1X2ST", outs1X2()),
		mk("double_chance", "Double Chance | Full Time", types.HandlerSimple, "3750", "10", "S_DC", outsDoubleChance()),
		mk("double_chance_1h", "Double Chance | 1st Half", types.HandlerSimple, "3751", "63", "S_DC1T", outsDoubleChance()),
		mk("double_chance_2h", "Double Chance | 2nd Half", types.HandlerSimple, "3752", "85", "S_DC2T", outsDoubleChance()),
		mk("dnb", "Draw No Bet | Full Time", types.HandlerSimple, "3761", "11", "S_DNB", outsDNB()),
		mk("dnb_1h", "Draw No Bet | 1st Half", types.HandlerSimple, "3762", "64", "S_DNB1T", outsDNB()),
		mk("dnb_2h", "Draw No Bet | 2nd Half", types.HandlerSimple, "3763", "86", "S_DNB2T", outsDNB()),

		// Totals family (parameterised by line)
		mk("ou_total", "Over/Under | Total Goals", types.HandlerOverUnder, "3795", "18", "S_OU", outsOverUnder()),
		mk("ou_total_1h", "Over/Under | 1st Half", types.HandlerOverUnder, "3796", "68", "S_OU1T", outsOverUnder()),
		mk("ou_total_2h", "Over/Under | 2nd Half", types.HandlerOverUnder, "3797", "90", "S_OU2T", outsOverUnder()),
		mk("ou_home", "Over/Under | Home Team", types.HandlerOverUnder, "3798", "19", "S_OUHOME", outsOverUnder()),
		mk("ou_away", "Over/Under | Away Team", types.HandlerOverUnder, "3799", "20", "S_OUAWAY", outsOverUnder()),
		mk("ou_home_1h", "Over/Under | Home Team 1st Half", types.HandlerOverUnder, "3800", "69", "S_OUHOME1T", outsOverUnder()),
		mk("ou_away_1h", "Over/Under | Away Team 1st Half", types.HandlerOverUnder, "3801", "70", "S_OUAWAY1T", outsOverUnder()),
		mk("ou_corners", "Over/Under | Corners", types.HandlerOverUnder, "4010", "166", "S_OUCORNER", outsOverUnder()),
		mk("ou_corners_1h", "Over/Under | Corners 1st Half", types.HandlerOverUnder, "4011", "169", "S_OUCORNER1T", outsOverUnder()),
		mk("ou_bookings", "Over/Under | Booking Points", types.HandlerOverUnder, "4030", "139", "S_OUBOOK", outsOverUnder()),

		// Handicaps (parameterised by line)
		mk("handicap", "Handicap | Full Time", types.HandlerHandicap, "3810", "16", "S_HND", outsHandicap3()),
		mk("handicap_1h", "Handicap | 1st Half", types.HandlerHandicap, "3811", "66", "S_HND1T", outsHandicap3()),
		mk("asian_handicap", "Asian Handicap | Full Time", types.HandlerHandicap, "3815", "223", "S_AH", outsDNB()),
		mk("asian_handicap_1h", "Asian Handicap | 1st Half", types.HandlerHandicap, "3816", "224", "S_AH1T", outsDNB()),
		mk("corners_handicap", "Corners Handicap | Full Time", types.HandlerHandicap, "3817", "170", "S_CHND", outsHandicap3()),

		// Both teams to score family
		mk("gg_ng", "Both Teams To Score | Full Time", types.HandlerSimple, "3780", "29", "S_GGNG", outsYesNo()),
		mk("gg_ng_1h", "Both Teams To Score | 1st Half", types.HandlerSimple, "3781", "75", "S_GGNG1T", outsYesNo()),
		mk("gg_ng_2h", "Both Teams To Score | 2nd Half", types.HandlerSimple, "3782", "95", "S_GGNG2T", outsYesNo()),

		// Odd/even family
		mk("odd_even", "Odd/Even | Total Goals", types.HandlerSimple, "3830", "26", "S_OE", outsOddEven()),
		mk("odd_even_1h", "Odd/Even | 1st Half", types.HandlerSimple, "3831", "74", "S_OE1T", outsOddEven()),
		mk("odd_even_home", "Odd/Even | Home Team", types.HandlerSimple, "3832", "27", "S_OEHOME", outsOddEven()),
		mk("odd_even_away", "Odd/Even | Away Team", types.HandlerSimple, "3833", "28", "S_OEAWAY", outsOddEven()),

		// Combination markets
		mk("htft", "Half Time / Full Time", types.HandlerSimple, "3770", "47", "S_HTFT", outsHTFT()),
		mk("1x2_gg", "1X2 + Both Teams To Score", types.HandlerSimple, "3771", "78", "S_1X2GG", crossOutcomes(outs1X2(), outsYesNo())),
		mk("1x2_ou", "1X2 + Over/Under", types.HandlerOverUnder, "3772", "36", "S_1X2OU", crossOutcomes(outs1X2(), outsOverUnder())),
		mk("dc_gg", "Double Chance + Both Teams To Score", types.HandlerSimple, "3773", "79", "S_DCGG", crossOutcomes(outsDoubleChance(), outsYesNo())),

		// Goal bands
		mk("goals_0_1", "Total Goals 0-1", types.HandlerSimple, "3840", "110", "S_TG01", outsYesNo()),
		mk("goals_2_3", "Total Goals 2-3", types.HandlerSimple, "3841", "111", "S_TG23", outsYesNo()),
		mk("goals_4_plus", "Total Goals 4+", types.HandlerSimple, "3842", "112", "S_TG4P", outsYesNo()),

		// Team-scoped markets
		mk("clean_sheet_home", "Clean Sheet | Home", types.HandlerSimple, "3850", "120", "S_CSHOME", outsYesNo()),
		mk("clean_sheet_away", "Clean Sheet | Away", types.HandlerSimple, "3851", "121", "S_CSAWAY", outsYesNo()),
		mk("win_to_nil_home", "Win To Nil | Home", types.HandlerSimple, "3852", "122", "S_WTNHOME", outsYesNo()),
		mk("win_to_nil_away", "Win To Nil | Away", types.HandlerSimple, "3853", "123", "S_WTNAWAY", outsYesNo()),
		mk("home_score_both_halves", "Home Scores In Both Halves", types.HandlerSimple, "3854", "130", "S_HSBH", outsYesNo()),
		mk("away_score_both_halves", "Away Scores In Both Halves", types.HandlerSimple, "3855", "131", "S_ASBH", outsYesNo()),
		mk("home_win_either_half", "Home Wins Either Half", types.HandlerSimple, "3856", "132", "S_HWEH", outsYesNo()),
		mk("away_win_either_half", "Away Wins Either Half", types.HandlerSimple, "3857", "133", "S_AWEH", outsYesNo()),
		mk("home_win_both_halves", "Home Wins Both Halves", types.HandlerSimple, "3858", "134", "S_HWBH", outsYesNo()),
		mk("away_win_both_halves", "Away Wins Both Halves", types.HandlerSimple, "3859", "135", "S_AWBH", outsYesNo()),

		// Discipline and set pieces
		mk("booking_1x2", "Bookings 1X2", types.HandlerSimple, "4040", "140", "S_BK1X2", outs1X2()),
		mk("red_card", "Red Card In Match", types.HandlerSimple, "4041", "141", "S_RC", outsYesNo()),
		mk("penalty_awarded", "Penalty Awarded", types.HandlerSimple, "4042", "142", "S_PEN", outsYesNo()),
		mk("both_halves_over_1_5", "Over 1.5 In Both Halves", types.HandlerSimple, "4043", "143", "S_BHO15", outsYesNo()),

		// Misc
		mk("first_goal", "First Team To Score", types.HandlerSimple, "3860", "15", "S_FG", []OutcomeMapping{
			out("home", "1", "Home", "1", 0),
			out("none", "No Goal", "None", "NG", 1),
			out("away", "2", "Away", "2", 2),
		}),
		mk("highest_half", "Highest Scoring Half", types.HandlerSimple, "3861", "53", "S_HSH", []OutcomeMapping{
			out("first", "1st Half", "1st Half", "1", 0),
			out("equal", "Equal", "Equal", "X", 1),
			out("second", "2nd Half", "2nd Half", "2", 2),
		}),
		// No reference-platform id: intentionally unmappable there.
		mk("correct_score", "Correct Score | Full Time", types.HandlerUnsupported, "", "45", "S_CS", nil),
	}

	// Period goal markets come in a regular grid; generate them rather than
	// hand-maintain 60 near-identical rows.
	for _, p := range []struct {
		suffix string
		name   string
		bpBase int
		sbBase int
		b9     string
	}{
		{"0_15", "Goal 00:00-15:00", 3900, 200, "S_G015"},
		{"15_30", "Goal 15:00-30:00", 3901, 201, "S_G1530"},
		{"30_45", "Goal 30:00-45:00", 3902, 202, "S_G3045"},
		{"45_60", "Goal 45:00-60:00", 3903, 203, "S_G4560"},
		{"60_75", "Goal 60:00-75:00", 3904, 204, "S_G6075"},
		{"75_90", "Goal 75:00-90:00", 3905, 205, "S_G7590"},
	} {
		ms = append(ms, mk("goal_"+p.suffix, p.name, types.HandlerSimple,
			fmt.Sprintf("%d", p.bpBase), fmt.Sprintf("%d", p.sbBase), p.b9, outsYesNo()))
	}

	// Exact total goals, full time and per team.
	for _, p := range []struct {
		scope  string
		name   string
		bpBase int
		sbBase int
		b9     string
	}{
		{"total", "Exact Goals | Total", 3910, 210, "S_EG"},
		{"total_1h", "Exact Goals | 1st Half", 3915, 213, "S_EG1T"},
		{"home", "Exact Goals | Home", 3920, 211, "S_EGHOME"},
		{"away", "Exact Goals | Away", 3930, 212, "S_EGAWAY"},
	} {
		for n := 0; n <= 4; n++ {
			label := fmt.Sprintf("%d", n)
			top := n == 4
			if top {
				label = "4+"
			}
			ms = append(ms, mk(
				fmt.Sprintf("exact_goals_%s_%s", p.scope, sanitizeLabel(label)),
				fmt.Sprintf("%s: %s", p.name, label),
				types.HandlerSimple,
				fmt.Sprintf("%d", p.bpBase+n),
				fmt.Sprintf("%d:%d", p.sbBase, n),
				fmt.Sprintf("%s%d", p.b9, n),
				outsYesNo(),
			))
		}
	}

	// Corner 1X2 and corner handicap variants per period.
	for _, p := range []struct {
		suffix string
		name   string
		bp     string
		sb     string
		b9     string
	}{
		{"", "Full Time", "4015", "167", "S_C1X2"},
		{"_1h", "1st Half", "4016", "168", "S_C1X21T"},
	} {
		ms = append(ms, mk("corners_1x2"+p.suffix, "Corners 1X2 | "+p.name, types.HandlerSimple, p.bp, p.sb, p.b9, outs1X2()))
	}

	// Multigoal bands, total and per team.
	for si, scope := range []struct {
		id     string
		name   string
		bpBase int
		b9     string
	}{
		{"", "Multigoal", 3950, "S_MG"},
		{"home_", "Home Multigoal", 3960, "S_MGHOME"},
		{"away_", "Away Multigoal", 3970, "S_MGAWAY"},
	} {
		for i, band := range []string{"1-2", "1-3", "2-3", "2-4", "3-5", "4-6"} {
			ms = append(ms, mk(
				"multigoal_"+scope.id+sanitizeLabel(band),
				scope.name+" "+band,
				types.HandlerSimple,
				fmt.Sprintf("%d", scope.bpBase+i),
				fmt.Sprintf("55%d:%d", si+1, i),
				scope.b9+sanitizeLabel(band),
				outsYesNo(),
			))
		}
	}

	return ms
}

// crossOutcomes builds the outcome product of two sets, e.g. 1X2 × GG/NG.
func crossOutcomes(a, b []OutcomeMapping) []OutcomeMapping {
	res := make([]OutcomeMapping, 0, len(a)*len(b))
	pos := 0
	for _, x := range a {
		for _, y := range b {
			res = append(res, OutcomeMapping{
				CanonicalID:   x.CanonicalID + "_" + y.CanonicalID,
				BetPawaName:   x.BetPawaName + " & " + y.BetPawaName,
				SportyBetDesc: x.SportyBetDesc + " & " + y.SportyBetDesc,
				Bet9jaSuffix:  x.Bet9jaSuffix + y.Bet9jaSuffix,
				Position:      pos,
			})
			pos++
		}
	}
	return res
}

func sanitizeLabel(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '-', '+':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
