package server

import (
	"github.com/bytedance/sonic"
	"net/http"
)

const (
	MSG_INTERNAL         = "Error interno del servidor"
	MSG_INVALID_DATA     = "Datos inválidos"
	MSG_UNAUTHORIZED     = "No autorizado"
	MSG_WRONG_PASSWORD   = "Contraseña incorrecta"
	MSG_INSCRIPTION_OK   = "Inscripción guardada exitosamente."
	MSG_BULK_OK          = "%d jugadores importados correctamente."
	MSG_BULK_FAILED      = "Error al procesar la carga masiva"
	MSG_DELETED          = "Jugador eliminado"
	MSG_INVALID_ID       = "ID inválido"
	MSG_STATS_FAILED     = "Error calculando estadísticas"
	MSG_EMPTY_LIST       = "La lista actual está vacía"
	MSG_BAD_IMAGE        = "Formato de imagen no permitido (jpg, jpeg, png)"
	MSG_BAD_WORKBOOK     = "El archivo Excel no es válido o no contiene jugadores"
	MSG_NO_MAILBOXES     = "No hay buzones de correo configurados"
	MSG_MAIL_FAILED      = "Error leyendo el correo"
	MSG_FILE_TOO_LARGE   = "El archivo supera el tamaño permitido"
	XLSX_CONTENT_TYPE    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	JSON_CONTENT_TYPE    = "application/json; charset=utf-8"
	BEARER_PREFIX        = "Bearer "
	AUTHORIZATION_HEADER = "Authorization"
)

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type inscriptionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

type importResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

type mailCheckResponse struct {
	Success  bool `json:"success"`
	Letters  int  `json:"letters"`
	Imported int  `json:"imported"`
	Failed   int  `json:"failed"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", JSON_CONTENT_TYPE)
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, success bool, message string) {
	writeJSON(w, status, messageResponse{Success: success, Message: message})
}

func writeFail(w http.ResponseWriter, status int, message string) {
	writeMessage(w, status, false, message)
}
