package program

import "strings"

// reservedWords are the procedure-division words that never name data:
// verbs, phrases, special registers, figurative constants and the IDMS/DAF
// extensions.
var reservedWords = toSet(`
ACCEPT ACCESS ADD ADDRESS ADVANCING AFTER ALL ALPHABETIC ALPHABETIC-LOWER
ALPHABETIC-UPPER ALPHANUMERIC ALSO ALTER AND ANY APPLY ARE AREA AREAS ASCENDING
AT AUTHOR BEFORE BINARY BLANK BOTH BOTTOM BY CALL CANCEL CHARACTER CHARACTERS
CLASS CLOSE COLS COMMA COMMIT COMP COMP-1 COMP-2 COMP-3 COMP-4 COMP-5
COMPUTATIONAL COMPUTE CONSOLE CONTENT CONTINUE CONVERTING CORR CORRESPONDING
COUNT CURRENT DATE DAY DAY-OF-WEEK DEBUG DEBUG-ITEM DECLARATIVES DELETE
DELIMITED DELIMITER DEPENDING DESCENDING DISPLAY DIVIDE DIVISION DOWN DUPLICATES
DYNAMIC EJECT ELSE END END-ADD END-CALL END-COMPUTE END-DELETE END-DIVIDE
END-EVALUATE END-EXEC END-IF END-MULTIPLY END-OF-PAGE END-PERFORM END-READ
END-RETURN END-REWRITE END-SEARCH END-START END-STRING END-SUBTRACT
END-UNSTRING END-WRITE ENTRY EOP EQUAL ERROR EVALUATE EXCEPTION EXIT EXTEND
FALSE FILE FIRST FOR FROM GIVING GO GOBACK GREATER HEX HIGH-VALUE HIGH-VALUES
IF IN INDEX INITIAL INITIALIZE INPUT INPUT-OUTPUT INSPECT INTO INVALID IS JSON
JUSTIFIED KEY LEADING LENGTH LESS LINAGE-COUNTER LINE LINES LOW-VALUE LOW-VALUES
MERGE METHOD MODE MOVE MULTIPLY NEGATIVE NEXT NO NO-POS NOT NULL NULLS NUMERIC
OF OFF OMITTED ON OPEN OR ORDER OTHER OUTPUT OVERFLOW PAGE PERFORM POINTER
POSITIVE PROCEDURE PROCEED PROGRAM QUOTE QUOTES RANDOM READ RECORD REDEFINES
REFERENCE RELEASE REMAINDER REPLACING RETURN RETURN-CODE RETURNING REVERSED
REWIND REWRITE ROUNDED RUN SEARCH SECTION SENTENCE SEPARATE SEQUENTIAL SET
SHIFT-IN SHIFT-OUT SIGN SIZE SORT SORT-RETURN SPACE SPACES STANDARD START
STATUS STOP STRING SUBTRACT SUPPRESS SYSIN SYSOUT TABLE TALLY TALLYING TEST
THAN THEN THROUGH THRU TIME TIMES TO TOP TRAILING TRUE UNSTRING UNTIL UP UPON
USAGE USING VALUE VALUES VARYING WHEN WHEN-COMPILED WITH WORDS WRITE XML ZERO
ZEROES ZEROS
`)

func toSet(words string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(words) {
		set[w] = true
	}
	return set
}

// identificationExpected lists what may follow a paragraph of the
// IDENTIFICATION DIVISION.
var identificationExpected = []string{
	"<EOF>", "AUTHOR", "DATA", "DATE-COMPILED", "DATE-WRITTEN", "END",
	"ENVIRONMENT", "INSTALLATION", "PROCEDURE", "SECURITY", "<comment entry>",
}

var commentParagraphs = []string{"AUTHOR", "INSTALLATION", "DATE-WRITTEN", "DATE-COMPILED", "SECURITY"}

var divisionNames = []string{"IDENTIFICATION", "ID", "ENVIRONMENT", "DATA", "PROCEDURE"}
