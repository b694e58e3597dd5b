package weather

import "github.com/rs/zerolog"

// symbolConditions maps SRF Meteo symbol codes to conditions. Positive codes
// are the daytime variant, negative codes the nighttime one. Several codes are
// undocumented by the provider and were mapped from observed descriptions.
var symbolConditions = map[int]Condition{
	1:  ConditionSunny,          // sonnig
	2:  ConditionFog,            // Nebelbänke
	3:  ConditionPartlyCloudy,   // teils sonnig
	4:  ConditionRainy,          // Regenschauer
	5:  ConditionLightningRainy, // Regenschauer mit Gewitter
	6:  ConditionSnowy,          // Schneeschauer
	7:  ConditionSnowyRainy,     // sonnige Abschnitte, Gewitter mit Schnee
	8:  ConditionSnowyRainy,     // Schneeregenschauer
	9:  ConditionSnowyRainy,     // wechselhaft, Schneeregenschauer und Gewitter
	10: ConditionSunny,          // ziemlich sonnig
	11: ConditionSunny,
	12: ConditionSunny,
	13: ConditionSunny,
	14: ConditionSunny,
	15: ConditionSunny,
	16: ConditionSunny,
	17: ConditionFog,    // Nebel
	18: ConditionCloudy, // stark bewölkt
	19: ConditionCloudy, // bedeckt
	20: ConditionRainy,  // regnerisch
	21: ConditionSnowy,  // Schneefall
	22: ConditionSnowyRainy,
	23: ConditionPouring, // Dauerregen
	24: ConditionSnowy,
	25: ConditionRainy,
	26: ConditionLightning,
	27: ConditionSnowy,
	28: ConditionCloudy,
	29: ConditionSnowyRainy,
	30: ConditionSnowyRainy,

	-1:  ConditionClearNight, // klar
	-2:  ConditionFog,
	-3:  ConditionCloudy,
	-4:  ConditionRainy,
	-5:  ConditionLightningRainy,
	-6:  ConditionSnowy,
	-7:  ConditionSnowy,
	-8:  ConditionSnowyRainy,
	-9:  ConditionLightningRainy,
	-10: ConditionPartlyCloudy, // klare Abschnitte
	-11: ConditionRainy,
	-12: ConditionLightning,
	-13: ConditionSnowy,
	-14: ConditionSnowy,
	-15: ConditionSnowyRainy,
	-16: ConditionPartlyCloudy,
	-17: ConditionFog,
	-18: ConditionCloudy,
	-19: ConditionCloudy,
	-20: ConditionRainy,
	-21: ConditionSnowy,
	-22: ConditionSnowyRainy,
	-23: ConditionPouring,
	-24: ConditionSnowy,
	-25: ConditionRainy,
	-26: ConditionLightning,
	-27: ConditionRainy,
	-28: ConditionLightningRainy,
	-29: ConditionSnowyRainy,
	-30: ConditionSnowyRainy,
}

// LookupSymbol returns the condition for a provider symbol code.
func LookupSymbol(symbol int) (Condition, bool) {
	c, ok := symbolConditions[symbol]
	return c, ok
}

// SymbolMapper maps symbol codes to conditions and reports codes the table
// does not know about.
type SymbolMapper struct {
	logger zerolog.Logger
}

// NewSymbolMapper creates a SymbolMapper that warns through logger.
func NewSymbolMapper(logger zerolog.Logger) *SymbolMapper {
	return &SymbolMapper{logger: logger}
}

// Map returns the condition for symbol, or ConditionUnavailable.
func (m *SymbolMapper) Map(symbol int) Condition {
	if c, ok := LookupSymbol(symbol); ok {
		return c
	}
	m.logger.Warn().Int("symbol_id", symbol).Msg("no condition entry for symbol id")
	return ConditionUnavailable
}
