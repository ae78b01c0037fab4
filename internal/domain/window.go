package domain

import "time"

// WindowKey deriva la clave canónica del slot de 15 minutos a partir de
// la hora de cierre del mercado: UTC "YYYYMMDD_HHMM".
func WindowKey(endTime time.Time) string {
	return endTime.UTC().Format("20060102_1504")
}

// WindowSlotStart devuelve el inicio del slot de 15 minutos que contiene t,
// alineado al reloj UTC.
func WindowSlotStart(t time.Time) time.Time {
	u := t.UTC().Truncate(time.Minute)
	return u.Add(-time.Duration(u.Minute()%15) * time.Minute)
}
