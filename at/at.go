// Package at frames and classifies the line protocol spoken by AT command
// modems.
package at

const (
	// Terminal Control
	CR         = "\r"
	CRLF       = "\r\n"
	PromptText = "> "
	CtrlZ      = "\x1A"
	Esc        = "\x1B"

	// Response Codes
	OK         = "OK"
	ERROR      = "ERROR"
	NoCarrier  = "NO CARRIER"
	NoDialtone = "NO DIALTONE"
	Busy       = "BUSY"
	NoAnswer   = "NO ANSWER"
	CmeError   = "+CME ERROR:"
	CmsError   = "+CMS ERROR:"

	// URCs (Unsolicited Result Codes)
	UrcRing          = "RING"
	UrcCellRing      = "+CRING:"
	UrcCallerID      = "+CLIP:"
	UrcNewMsg        = "+CMTI:"
	UrcMsgPush       = "+CMT:"
	UrcMessageReport = "+CDSI:"
	UrcRegistration  = "+CREG:"
	UrcGPRSReg       = "+CGREG:"
	UrcEPSReg        = "+CEREG:"
	UrcCallBegin     = "VOICE CALL: BEGIN"
	UrcCallEnd       = "VOICE CALL: END:"
	UrcMissedCall    = "MISSED_CALL:"
	UrcDTMF          = "+RXDTMF:"
	UrcStorageFull   = "+SMS FULL"

	// Information responses carrying a body line
	RespReadMsg = "+CMGR:"
	RespListMsg = "+CMGL:"
	RespSendMsg = "+CMGS:"

	// Commands
	CmdAt            = "AT"
	CmdEchoOff       = "ATE0"
	CmdReportErrors  = "AT+CMEE=1"
	CmdSimStatus     = "AT+CPIN?"
	CmdSimPIN        = `AT+CPIN="%s"`
	CmdSetTextMode   = "AT+CMGF=1"
	CmdSetPDUMode    = "AT+CMGF=0"
	CmdCharset       = `AT+CSCS="%s"`
	CmdPushContent   = "AT+CNMI=2,2,0,0,0"
	CmdPushIndex     = "AT+CNMI=2,1,0,0,0"
	CmdQueryNotify   = "AT+CNMI?"
	CmdReadMsg       = "AT+CMGR=%d"
	CmdDeleteMsg     = "AT+CMGD=%d"
	CmdListMsgText   = `AT+CMGL="%s"`
	CmdListMsgPDU    = "AT+CMGL=%d"
	CmdSendText      = `AT+CMGS="%s"`
	CmdSendPDU       = "AT+CMGS=%d"
	CmdCallerID      = "AT+CLIP=1"
	CmdRegistration  = "AT+CREG=2"
	CmdDial          = "ATD%s;"
	CmdAnswer        = "ATA"
	CmdHangup        = "ATH"
	CmdSignal        = "AT+CSQ"
	CmdOperator      = "AT+COPS?"
	CmdOwnNumber     = "AT+CNUM"
	CmdManufacturer  = "AT+CGMI"
	CmdModel         = "AT+CGMM"
	CmdIMEI          = "AT+CGSN"
	CmdRevision      = "AT+CGMR"
	CmdRegistrationQ = "AT+CREG?"

	// SIM states
	SimReady = "READY"
	SimPin   = "SIM PIN"
)
