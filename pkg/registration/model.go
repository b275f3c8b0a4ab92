package registration

import "time"

// Player types. Only the base type matters for logic: every other type needs a guarantor member.
const (
	PLAYER_TYPE_SOCIO     = "socio"
	PLAYER_TYPE_CONYUGE   = "conyuge"
	PLAYER_TYPE_ADHERENTE = "adherente"
	PLAYER_TYPE_INVITADO  = "invitado"
)

// Player is one row of the "Lista de Buena Fe". It is never updated after insert, only deleted.
type Player struct {
	ID            int64     `json:"id" mapstructure:"id"`
	FullName      string    `json:"fullName" mapstructure:"fullName"`
	Dni           string    `json:"dni" mapstructure:"dni"`
	Phone         string    `json:"phone" mapstructure:"phone"`
	Email         string    `json:"email" mapstructure:"email"`
	PlayerType    string    `json:"playerType" mapstructure:"playerType"`
	TeamName      string    `json:"teamName" mapstructure:"teamName"`
	Category      string    `json:"category" mapstructure:"category"`
	JerseyNumber  string    `json:"jerseyNumber" mapstructure:"jerseyNumber"`
	SocioName     *string   `json:"socioName" mapstructure:"socioName"`
	SocioDni      *string   `json:"socioDni" mapstructure:"socioDni"`
	SocioPhone    *string   `json:"socioPhone" mapstructure:"socioPhone"`
	DniPlayerPath *string   `json:"dniPlayerPath" mapstructure:"dniPlayerPath"`
	DniSocioPath  *string   `json:"dniSocioPath" mapstructure:"dniSocioPath"`
	CreatedAt     time.Time `json:"createdAt" mapstructure:"createdAt"`
}

// NeedsGuarantor reports whether the form has to collect socio data for this player.
func (p Player) NeedsGuarantor() bool {
	return p.PlayerType != "" && p.PlayerType != PLAYER_TYPE_SOCIO
}

type TeamCount struct {
	TeamName *string `json:"teamName" mapstructure:"teamName"`
	Count    int64   `json:"count" mapstructure:"count"`
}

type CategoryCount struct {
	Category *string `json:"category" mapstructure:"category"`
	Count    int64   `json:"count" mapstructure:"count"`
}

// Snapshot is what the admin dashboard shows on top of the players table.
type Snapshot struct {
	Total      int64           `json:"total"`
	ByTeam     []TeamCount     `json:"byTeam"`
	ByCategory []CategoryCount `json:"byCategory"`
}

// NullIfEmpty is used for optional columns: an empty form field is stored as NULL.
func NullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
