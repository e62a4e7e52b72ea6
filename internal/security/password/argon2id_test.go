package password

import "testing"

func TestHashVerify_RoundTrip(t *testing.T) {
	// parámetros chicos para que el test sea rápido
	p := Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

	phc, err := Hash(p, "hola mundo ✓")
	if err != nil {
		t.Fatalf("Hash err: %v", err)
	}
	if !Verify("hola mundo ✓", phc) {
		t.Fatal("Verify debió aceptar la password correcta")
	}
	if Verify("otra", phc) {
		t.Fatal("Verify aceptó una password incorrecta")
	}
}

func TestHash_EmptyRejected(t *testing.T) {
	if _, err := Hash(Default, ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestVerify_MalformedPHC(t *testing.T) {
	cases := []string{
		"",
		"$argon2id$v=19$m=1,t=1,p=1$salt",      // faltan partes
		"$bcrypt$v=19$m=1,t=1,p=1$aaaa$bbbb",   // algoritmo distinto
		"$argon2id$v=18$m=1,t=1,p=1$aaaa$bbbb", // versión distinta
		"$argon2id$v=19$m=x,t=1,p=1$aaaa$bbbb", // params no numéricos
		"$argon2id$v=19$m=1,t=1,p=1$!!$bbbb",   // salt no base64
	}
	for _, phc := range cases {
		if Verify("x", phc) {
			t.Fatalf("Verify aceptó PHC malformado: %q", phc)
		}
	}
}
